package handler

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/studyhive/realtime-service/internal/config"
)

func getICEServers(t *testing.T, h *ICEHandler) ICEServersResponse {
	t.Helper()

	router := mux.NewRouter()
	h.RegisterRoutes(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/webrtc/ice-servers", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ICEServersResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestICEHandler_STUNOnlyWithoutTURNConfig(t *testing.T) {
	req := require.New(t)
	h := NewICEHandler(config.WebRTCConfig{
		STUNURLs: []string{"stun:stun.example.com:3478"},
	})

	resp := getICEServers(t, h)

	req.Len(resp.ICEServers, 1)
	req.Equal([]string{"stun:stun.example.com:3478"}, resp.ICEServers[0].URLs)
	req.Empty(resp.ICEServers[0].Username)
	req.Empty(resp.ICEServers[0].Credential)
}

func TestICEHandler_DefaultSTUNWhenListEmpty(t *testing.T) {
	req := require.New(t)
	h := NewICEHandler(config.WebRTCConfig{})

	resp := getICEServers(t, h)

	req.Len(resp.ICEServers, 1)
	req.Equal([]string{"stun:stun.l.google.com:19302"}, resp.ICEServers[0].URLs)
}

func TestICEHandler_TimeLimitedTURNCredential(t *testing.T) {
	req := require.New(t)
	h := NewICEHandler(config.WebRTCConfig{
		STUNURLs:   []string{"stun:stun.example.com:3478"},
		TURNHost:   "turn.example.com",
		TURNSecret: "shared-secret",
		TURNTTL:    time.Hour,
	})
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return now }

	resp := getICEServers(t, h)

	req.Len(resp.ICEServers, 2)
	turn := resp.ICEServers[1]
	req.Equal([]string{"turn:turn.example.com:3478"}, turn.URLs)

	// Username is the expiry timestamp, credential its HMAC-SHA1 tag
	// under the shared secret.
	req.Equal("1773493200", turn.Username)
	mac := hmac.New(sha1.New, []byte("shared-secret"))
	mac.Write([]byte(turn.Username))
	req.Equal(base64.StdEncoding.EncodeToString(mac.Sum(nil)), turn.Credential)
}
