package handler

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/studyhive/realtime-service/internal/config"
)

// ICEServer is one entry of the ICE configuration handed to clients.
type ICEServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

// ICEServersResponse is the API response for GET /api/v1/webrtc/ice-servers.
type ICEServersResponse struct {
	ICEServers []ICEServer `json:"ice_servers"`
}

// ICEHandler serves ICE server configuration: the configured STUN URLs
// plus, when a TURN shared secret is configured, a time-limited TURN
// credential derived per request (coturn use-auth-secret scheme).
type ICEHandler struct {
	cfg config.WebRTCConfig
	now func() time.Time
}

func NewICEHandler(cfg config.WebRTCConfig) *ICEHandler {
	return &ICEHandler{cfg: cfg, now: time.Now}
}

// GetICEServers handles GET /api/v1/webrtc/ice-servers.
func (h *ICEHandler) GetICEServers(w http.ResponseWriter, r *http.Request) {
	servers := make([]ICEServer, 0, 2)

	stun := h.cfg.STUNURLs
	if len(stun) == 0 {
		// Always hand out at least one STUN server.
		stun = []string{"stun:stun.l.google.com:19302"}
	}
	servers = append(servers, ICEServer{URLs: stun})

	if turn, ok := h.turnServer(); ok {
		servers = append(servers, turn)
	}

	writeJSON(w, ICEServersResponse{ICEServers: servers})
}

// turnServer derives a time-limited TURN entry. The username is the
// credential's expiry unix timestamp and the credential is
// base64(HMAC-SHA1(secret, username)), which coturn verifies with the
// same shared secret. Returns false when TURN is not configured, so
// the endpoint degrades to STUN-only.
func (h *ICEHandler) turnServer() (ICEServer, bool) {
	if h.cfg.TURNHost == "" || h.cfg.TURNSecret == "" {
		return ICEServer{}, false
	}

	ttl := h.cfg.TURNTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	username := strconv.FormatInt(h.now().Add(ttl).Unix(), 10)

	mac := hmac.New(sha1.New, []byte(h.cfg.TURNSecret))
	mac.Write([]byte(username))
	credential := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return ICEServer{
		URLs:       []string{"turn:" + h.cfg.TURNHost + ":3478"},
		Username:   username,
		Credential: credential,
	}, true
}

// RegisterRoutes attaches the WebRTC configuration routes.
func (h *ICEHandler) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/webrtc/ice-servers", h.GetICEServers).Methods(http.MethodGet)
}
