package handlers

import (
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-chat/middleware"
	"github.com/nijaru/yt-chat/session"
	"github.com/nijaru/yt-chat/utils"
)

//go:embed templates/index.html
var templates embed.FS

var indexTemplate = template.Must(template.ParseFS(templates, "templates/index.html"))

type Handler struct {
	sessions *session.Manager
	started  time.Time
}

func New(sessions *session.Manager) *Handler {
	return &Handler{sessions: sessions, started: time.Now()}
}

func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", h.IndexHandler)
	mux.HandleFunc("/credential", h.CredentialHandler)
	mux.HandleFunc("/video", h.VideoHandler)
	mux.HandleFunc("/ask", h.AskHandler)
	mux.HandleFunc("/health", h.HealthHandler)
	return mux
}

func (h *Handler) IndexHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		utils.HandleError(w, "Not found", http.StatusNotFound)
		return
	}
	if r.Method != http.MethodGet {
		utils.HandleError(w, "Invalid request method", http.StatusMethodNotAllowed)
		return
	}

	view := h.controller(w, r).Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, view); err != nil {
		logrus.WithError(err).Error("Failed to render page")
	}
}

func (h *Handler) CredentialHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.HandleError(w, "Invalid request method", http.StatusMethodNotAllowed)
		return
	}

	res := h.controller(w, r).SetCredential(r.Context(), r.FormValue("api_key"))
	h.logResult(r, "credential", res)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) VideoHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.HandleError(w, "Invalid request method", http.StatusMethodNotAllowed)
		return
	}

	url := r.FormValue("url")
	logrus.WithField("url", url).Info("Received video submission")

	res := h.controller(w, r).SubmitURL(r.Context(), url)
	h.logResult(r, "video", res)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) AskHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.HandleError(w, "Invalid request method", http.StatusMethodNotAllowed)
		return
	}

	question := r.FormValue("question")
	logrus.WithField("question", utils.Truncate(question, 80)).Info("Received question")

	res := h.controller(w, r).Ask(r.Context(), question)
	h.logResult(r, "ask", res)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.HandleError(w, "Invalid request method", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(struct {
		Status   string `json:"status"`
		Uptime   string `json:"uptime"`
		Sessions int    `json:"sessions"`
	}{
		Status:   "ok",
		Uptime:   time.Since(h.started).Round(time.Second).String(),
		Sessions: h.sessions.Len(),
	})
	if err != nil {
		logrus.WithError(err).Error("Failed to encode JSON response")
	}
}

// controller returns the caller's session controller, starting a new session
// and setting the cookie when the request has none or it has expired.
func (h *Handler) controller(w http.ResponseWriter, r *http.Request) *session.Controller {
	if cookie, err := r.Cookie(session.CookieName); err == nil {
		if c, ok := h.sessions.Get(cookie.Value); ok {
			return c
		}
	}

	id, c := h.sessions.Create()
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return c
}

func (h *Handler) logResult(r *http.Request, action string, res session.Result) {
	entry := logrus.WithFields(logrus.Fields{
		"request_id": middleware.GetRequestID(r.Context()),
		"action":     action,
		"state":      res.State.String(),
	})
	for _, n := range res.Notices {
		if n.Level == session.LevelError {
			entry.WithField("notice", n.Message).Warn("Action reported an error")
			return
		}
	}
	entry.Debug("Action completed")
}
