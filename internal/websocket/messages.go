package websocket

import (
	"encoding/json"
	"fmt"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Supported message types
const (
	MessageTypeAudioChunk     MessageType = "audio_chunk"
	MessageTypeAnalysisResult MessageType = "analysis_result"
	MessageTypeError          MessageType = "error"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp,omitempty"`
}

// AudioChunkMessage is one inbound audio frame of a session's stream.
type AudioChunkMessage struct {
	BaseMessage
	SessionID string `json:"session_id"`
	AudioData string `json:"audio_data"` // base64 encoded
	ChunkSeq  int    `json:"chunk_sequence,omitempty"`
	IsFinal   bool   `json:"is_final"`
}

// AnalysisResultMessage is the single result emitted per completed
// stream. Riesgo is always populated, even when extraction fell back to
// the default.
type AnalysisResultMessage struct {
	BaseMessage
	SessionID  string `json:"session_id"`
	Transcript string `json:"transcripcion"`
	Result     string `json:"diagnostico"`
	RiskScore  int    `json:"riesgo"`
}

// ErrorMessage reports a per-stream failure to the client.
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
}

// ParseAudioChunk decodes and validates an inbound audio_chunk frame.
func ParseAudioChunk(data []byte) (*AudioChunkMessage, error) {
	var msg AudioChunkMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("invalid message format: %w", err)
	}
	if msg.Type != MessageTypeAudioChunk {
		return nil, fmt.Errorf("unexpected message type: %s", msg.Type)
	}
	if msg.SessionID == "" {
		return nil, fmt.Errorf("session_id is required")
	}
	return &msg, nil
}
