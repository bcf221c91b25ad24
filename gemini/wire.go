package gemini

// Client messages.

type setupMessage struct {
	Setup setupPayload `json:"setup"`
}

type setupPayload struct {
	Model                   string           `json:"model"`
	GenerationConfig        generationConfig `json:"generationConfig"`
	InputAudioTranscription struct{}         `json:"inputAudioTranscription"`
}

type generationConfig struct {
	ResponseModalities []string `json:"responseModalities"`
}

func newSetupMessage(model string) setupMessage {
	return setupMessage{
		Setup: setupPayload{
			Model: model,
			GenerationConfig: generationConfig{
				ResponseModalities: []string{"TEXT"},
			},
		},
	}
}

type realtimeInputMessage struct {
	RealtimeInput realtimeInput `json:"realtimeInput"`
}

type realtimeInput struct {
	MediaChunks []mediaChunk `json:"mediaChunks"`
}

type mediaChunk struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

// Server messages. Fields not consumed here are left unmapped; the decoder
// ignores them.

type serverMessage struct {
	SetupComplete *struct{}      `json:"setupComplete"`
	ServerContent *serverContent `json:"serverContent"`
}

type serverContent struct {
	InputTranscription *transcriptionText `json:"inputTranscription"`
	TurnComplete       bool               `json:"turnComplete"`
}

type transcriptionText struct {
	Text string `json:"text"`
}
