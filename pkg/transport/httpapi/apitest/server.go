// Package apitest runs an in-process controller that speaks the console's
// HTTP API, for tests.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/modoterra/svconsole/pkg/transport/httpapi"
)

// CommandFunc handles one command. user is empty when the request carries no
// session cookie. It returns the HTTP status and the JSON body.
type CommandFunc func(w http.ResponseWriter, user string, params []string) (int, any)

// ActivityFunc handles one activity.
type ActivityFunc func(user string) (int, any)

// Server is a fake controller. The zero configuration knows the commands
// login, logout, whoami, change_password and help, a single user
// "admin"/"secret", and the activities start, stop and reboot.
type Server struct {
	*httptest.Server

	StartTime time.Time

	mu         sync.Mutex
	users      map[string]string
	commands   map[string]CommandFunc
	activities map[string]ActivityFunc
	status     func(user string) (int, any)
	received   []httpapi.CommandRequest
	activity   []string
	statusHits int
}

// NewServer starts a fake controller. Callers must Close it.
func NewServer() *Server {
	s := &Server{
		StartTime:  time.Now().Add(-90 * time.Minute).UTC().Truncate(time.Second),
		users:      map[string]string{"admin": "secret"},
		commands:   make(map[string]CommandFunc),
		activities: make(map[string]ActivityFunc),
	}
	s.registerDefaults()

	r := mux.NewRouter()
	r.HandleFunc(httpapi.PathCommand, s.handleCommand).Methods(http.MethodPost)
	r.HandleFunc(httpapi.PathStatus, s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc(httpapi.PathActivities, s.handleActivity).Methods(http.MethodPost)
	r.HandleFunc(httpapi.PathDetails, s.handleDetails).Methods(http.MethodGet)

	s.Server = httptest.NewServer(r)
	return s
}

// HandleCommand registers or replaces a command handler.
func (s *Server) HandleCommand(name string, h CommandFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands[name] = h
}

// HandleActivity registers or replaces an activity handler.
func (s *Server) HandleActivity(name string, h ActivityFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activities[name] = h
}

// HandleStatus replaces the status handler.
func (s *Server) HandleStatus(h func(user string) (int, any)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = h
}

// Commands returns every command request received so far.
func (s *Server) Commands() []httpapi.CommandRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]httpapi.CommandRequest(nil), s.received...)
}

// Activities returns every activity received so far.
func (s *Server) Activities() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.activity...)
}

// StatusHits returns how many status requests were served.
func (s *Server) StatusHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusHits
}

// Result builds a command or activity body.
func Result(status, message string) map[string]any {
	return map[string]any{"status": status, "message": message}
}

func (s *Server) registerDefaults() {
	s.commands["login"] = func(w http.ResponseWriter, _ string, p []string) (int, any) {
		if len(p) != 2 {
			return http.StatusBadRequest, Result("fail", "Invalid number of parameters, correct usage: login [username] [password]")
		}
		s.mu.Lock()
		pw, ok := s.users[p[0]]
		s.mu.Unlock()
		if !ok || pw != p[1] {
			return http.StatusUnauthorized, Result("fail", "Unable to login: username or password invalid")
		}
		http.SetCookie(w, &http.Cookie{Name: httpapi.SessionCookie, Value: p[0], Path: "/", HttpOnly: true})
		return http.StatusOK, Result("success", "User logged in successfully")
	}
	s.commands["logout"] = func(w http.ResponseWriter, _ string, _ []string) (int, any) {
		http.SetCookie(w, &http.Cookie{Name: httpapi.SessionCookie, Value: "", Path: "/", MaxAge: -1})
		return http.StatusOK, Result("success", "Logged out successfully")
	}
	s.commands["whoami"] = func(_ http.ResponseWriter, user string, _ []string) (int, any) {
		if user == "" {
			return http.StatusUnauthorized, Result("fail", "Not logged in")
		}
		return http.StatusOK, map[string]any{"status": "success", "message": "Loged in as " + user, "username": user}
	}
	s.commands["change_password"] = func(_ http.ResponseWriter, user string, p []string) (int, any) {
		if user == "" {
			return http.StatusUnauthorized, Result("fail", "Not logged in")
		}
		if len(p) != 1 {
			return http.StatusBadRequest, Result("fail", "Invalid number of parameters")
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.users[user]; !ok {
			return http.StatusUnauthorized, map[string]any{"status": "fail", "message": "You are not loged in", "update_user": true}
		}
		s.users[user] = p[0]
		return http.StatusOK, Result("success", "Password changed successfully")
	}
	s.commands["help"] = func(_ http.ResponseWriter, _ string, _ []string) (int, any) {
		s.mu.Lock()
		names := make([]string, 0, len(s.commands))
		for name := range s.commands {
			names = append(names, name)
		}
		s.mu.Unlock()
		sort.Strings(names)
		return http.StatusOK, map[string]any{"status": "success", "message": names}
	}

	for _, name := range []string{"start", "stop", "reboot"} {
		name := name // per-iteration copy; go directive is below 1.22
		s.activities[name] = func(user string) (int, any) {
			if user == "" {
				return http.StatusUnauthorized, Result("fail", "You are not logged in")
			}
			return http.StatusOK, Result("success", name+" accepted")
		}
	}
}

func sessionUser(r *http.Request) string {
	c, err := r.Cookie(httpapi.SessionCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req httpapi.CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.received = append(s.received, req)
	h, ok := s.commands[req.Command]
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusBadRequest, Result("fail", "Unkown command"))
		return
	}
	code, body := h(w, sessionUser(r), req.Parameters)
	writeJSON(w, code, body)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	user := sessionUser(r)

	s.mu.Lock()
	s.statusHits++
	h := s.status
	s.mu.Unlock()

	if h != nil {
		code, body := h(user)
		writeJSON(w, code, body)
		return
	}
	if user == "" {
		writeJSON(w, http.StatusUnauthorized, Result("fail", "Not logged in"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "success",
		"username":    user,
		"port":        "5050",
		"startTime":   s.StartTime,
		"cpu":         12.5,
		"memory":      512 * 1024 * 1024,
		"connections": 3,
	})
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	var req httpapi.ActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.activity = append(s.activity, req.Activity)
	h, ok := s.activities[req.Activity]
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusBadRequest, Result("fail", "Unkown command"))
		return
	}
	code, body := h(sessionUser(r))
	writeJSON(w, code, body)
}

func (s *Server) handleDetails(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "success",
		"server_name": "Home Server Controller",
		"server_uid":  "test-uid",
		"port":        5050,
	})
}
