package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xhad/ragbot/internal/models"
	"github.com/xhad/ragbot/pkg/config"
	"github.com/xhad/ragbot/pkg/lang"
	"github.com/xhad/ragbot/pkg/processor"
	"github.com/xhad/ragbot/pkg/rag"
)

const maxUploadBytes = 64 << 20

// RAG is the orchestrator surface the server exposes.
type RAG interface {
	Ingest(ctx context.Context, paths []string) (bool, string)
	Query(ctx context.Context, question string) models.QueryResult
	Clear(ctx context.Context) (bool, string)
	Status(ctx context.Context) rag.Status
	Troubleshooting(ctx context.Context) rag.Troubleshooting
	DocumentStats() processor.Stats
	ValidateFile(filename string) bool
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Be careful with this in production
	},
}

type Message struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Data    any    `json:"data,omitempty"`
}

type Server struct {
	cfg    *config.Config
	rag    RAG
	logger *slog.Logger
	mux    *http.ServeMux
}

type Option func(*Server)

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

func New(cfg *config.Config, system RAG, opts ...Option) *Server {
	s := &Server{
		cfg:    cfg,
		rag:    system,
		logger: slog.Default(),
		mux:    http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	s.mux.HandleFunc("GET /status", s.handleStatus)
	s.mux.HandleFunc("GET /stats", s.handleStats)
	s.mux.HandleFunc("GET /troubleshooting", s.handleTroubleshooting)
	s.mux.HandleFunc("GET /messages", s.handleMessages)
	s.mux.HandleFunc("POST /upload", s.handleUpload)
	s.mux.HandleFunc("POST /query", s.handleQuery)
	s.mux.HandleFunc("POST /clear", s.handleClear)
	s.mux.HandleFunc("/ws", s.handleWebSocket)
	return s
}

func (s *Server) Handler() http.Handler { return s.mux }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", s.cfg.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

type result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type uploadedFile struct {
	Name string `json:"name"`
	Size string `json:"size"`
}

type uploadResult struct {
	result
	Files    []uploadedFile `json:"files"`
	Rejected []string       `json:"rejected,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.rag.Status(r.Context()))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.rag.DocumentStats())
}

func (s *Server) handleTroubleshooting(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.rag.Troubleshooting(r.Context()))
}

type messagesResponse struct {
	Language lang.Language              `json:"language"`
	Messages map[lang.MessageKey]string `json:"messages"`
}

// handleMessages serves the UI labels for ?lang=, English by default.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	l := lang.Parse(r.URL.Query().Get("lang"))
	writeJSON(w, http.StatusOK, messagesResponse{Language: l, Messages: lang.Catalog(l)})
}

// handleUpload writes the multipart "files" into a scratch directory owned by
// this request, ingests them and removes the directory however ingest ends.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, result{Message: fmt.Sprintf("invalid upload: %v", err)})
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeJSON(w, http.StatusBadRequest, result{Message: "No files uploaded"})
		return
	}

	scratch, err := os.MkdirTemp(s.cfg.Server.ScratchDir, "upload-*")
	if err != nil {
		s.logger.Error("creating scratch directory failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, result{Message: "Failed to store uploaded files"})
		return
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			s.logger.Warn("removing scratch directory failed", "dir", scratch, "error", err)
		}
	}()

	res := uploadResult{}
	var paths []string
	for i, fh := range headers {
		name := filepath.Base(fh.Filename)
		if !s.rag.ValidateFile(name) {
			res.Rejected = append(res.Rejected, fmt.Sprintf("Unsupported file type: %s", name))
			continue
		}

		// Prefixed so two uploads with the same name do not collide.
		path := filepath.Join(scratch, fmt.Sprintf("%d_%s", i, name))
		if err := saveUpload(fh, path); err != nil {
			res.Rejected = append(res.Rejected, fmt.Sprintf("Error saving %s: %v", name, err))
			continue
		}
		paths = append(paths, path)
		res.Files = append(res.Files, uploadedFile{Name: name, Size: processor.FormatFileSize(fh.Size)})
	}

	if len(paths) == 0 {
		res.Message = "No supported files uploaded"
		writeJSON(w, http.StatusBadRequest, res)
		return
	}

	res.Success, res.Message = s.rag.Ingest(r.Context(), paths)
	s.logger.Info("upload processed", "files", len(paths), "rejected", len(res.Rejected), "success", res.Success)

	status := http.StatusOK
	if !res.Success {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, res)
}

func saveUpload(fh *multipart.FileHeader, path string) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

type queryRequest struct {
	Question string `json:"question"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, result{Message: "question is required"})
		return
	}
	writeJSON(w, http.StatusOK, s.rag.Query(r.Context(), req.Question))
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	ok, msg := s.rag.Clear(r.Context())
	status := http.StatusOK
	if !ok {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, result{Success: ok, Message: msg})
}

// wsConn serializes writes; gorilla connections allow one concurrent writer.
type wsConn struct {
	*websocket.Conn
	mu sync.Mutex
}

func (c *wsConn) send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.WriteJSON(msg)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	conn := &wsConn{Conn: raw}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket read ended", "error", err)
			}
			cancel()
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendMessage(conn, Message{Type: "error", Content: fmt.Sprintf("invalid message: %v", err)})
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleMessage(ctx, conn, msg)
		}()
	}
}

func (s *Server) handleMessage(ctx context.Context, conn *wsConn, msg Message) {
	switch msg.Type {
	case "query", "":
		question := strings.TrimSpace(msg.Content)
		if question == "" {
			s.sendMessage(conn, Message{Type: "error", Content: "empty question"})
			return
		}

		language := lang.Detect(question, s.cfg.Language.HindiThreshold)
		s.sendMessage(conn, Message{Type: "status", Content: lang.Message(lang.Thinking, language)})

		res := s.rag.Query(ctx, question)
		s.sendMessage(conn, Message{Type: "response", Content: res.Answer, Data: res})

	case "clear":
		ok, m := s.rag.Clear(ctx)
		typ := "status"
		if !ok {
			typ = "error"
		}
		s.sendMessage(conn, Message{Type: typ, Content: m})

	case "status":
		s.sendMessage(conn, Message{Type: "status", Content: "status", Data: s.rag.Status(ctx)})

	case "labels":
		l := lang.Parse(strings.TrimSpace(msg.Content))
		s.sendMessage(conn, Message{Type: "labels", Content: string(l), Data: lang.Catalog(l)})

	default:
		s.sendMessage(conn, Message{Type: "error", Content: fmt.Sprintf("unknown message type %q", msg.Type)})
	}
}

func (s *Server) sendMessage(conn *wsConn, msg Message) {
	if err := conn.send(msg); err != nil {
		s.logger.Debug("error sending message", "type", msg.Type, "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
