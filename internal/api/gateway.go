package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/JakeFAU/openfeeder/internal/feed"
	"github.com/JakeFAU/openfeeder/internal/gateway"
	"github.com/JakeFAU/openfeeder/internal/metrics"
)

const maxRespondBody = 64 << 10

// gatewayMiddleware intercepts crawler page requests before routing.
// Bypass requests continue down the chain untouched.
func (s *Server) gatewayMiddleware(next http.Handler) http.Handler {
	if s.gateway == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := s.gateway.Inspect(r)
		switch d.Mode {
		case gateway.ModeDirect:
			metrics.ObserveGateway(d.Mode.String())
			s.writeDialogue(w, s.gateway.Direct(r, d))
		case gateway.ModeColdStart:
			metrics.ObserveGateway(d.Mode.String())
			resp, err := s.gateway.ColdStart(r.Context(), r, d)
			if err != nil {
				writeError(w, s.logger, err)
				return
			}
			s.writeDialogue(w, resp)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

func (s *Server) writeDialogue(w http.ResponseWriter, payload any) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Vary", "User-Agent")
	writeJSON(w, s.logger, http.StatusOK, payload)
}

// respondBody keeps answers raw so a malformed answers value cannot stop
// the session from being consumed.
type respondBody struct {
	SessionID string          `json:"session_id"`
	Answers   json.RawMessage `json:"answers"`
}

func (s *Server) postRespond(w http.ResponseWriter, r *http.Request) {
	var body respondBody
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRespondBody))
	if err := dec.Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, s.logger, feed.InvalidParam("request body must be a JSON object"))
		return
	}
	req := gateway.RespondRequest{SessionID: body.SessionID}
	if len(body.Answers) > 0 {
		if err := json.Unmarshal(body.Answers, &req.Answers); err != nil {
			s.logger.Debug("ignoring malformed gateway answers", zap.Error(err))
			req.Answers = nil
		}
	}
	agent, ok := s.gateway.MatchAgent(r.UserAgent())
	if !ok {
		agent = "unknown"
	}
	ans, err := s.gateway.Respond(r.Context(), req, agent)
	if err != nil {
		fe := feed.AsError(err)
		s.logger.Debug("gateway respond rejected", zap.String("code", string(fe.Code)))
		writeError(w, s.logger, fe)
		return
	}
	metrics.ObserveGateway(gateway.ModeRespond.String())
	s.writeDialogue(w, ans)
}
