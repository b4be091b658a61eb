package server

import (
	"encoding/json"
	"net/http"
)

type voiceRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voice_id,omitempty"`
}

// handleVoiceSynthesize proxies text-to-speech. Provider failure is a 200
// with an error body so clients can fall back to on-screen text.
func (s *Server) handleVoiceSynthesize(w http.ResponseWriter, r *http.Request) {
	var req voiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	if s.voice == nil {
		writeJSON(w, http.StatusOK, map[string]string{"error": "Voice synthesis unavailable."})
		return
	}

	audio, err := s.voice.Synthesize(r.Context(), req.Text, req.VoiceID)
	if err != nil {
		s.log.Warn().Err(err).Msg("voice synthesis failed")
		writeJSON(w, http.StatusOK, map[string]string{"error": "Voice synthesis unavailable. Check the TTS configuration."})
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Disposition", "inline; filename=speech.mp3")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio)
}
