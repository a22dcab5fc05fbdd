package models

// SetupRequest is the payload for the /setup command. Validated by
// internal/guards before it reaches the Data Layer.
type SetupRequest struct {
	DisplayName string `json:"display_name" validate:"required,min=3,max=12"`
	BattleTag   string `json:"battle_tag" validate:"omitempty,max=20"`
	AltName1    string `json:"alt_name_1" validate:"omitempty,min=3,max=12"`
	AltName2    string `json:"alt_name_2" validate:"omitempty,min=3,max=12"`
	Country     string `json:"country" validate:"required,len=2"`
	Region      string `json:"region" validate:"required"`
}

// ActivateRequest is the payload for the /activate command.
type ActivateRequest struct {
	ActivationCode string `json:"activation_code" validate:"required"`
}

// AcceptToSRequest is the payload for the /termsofservice command.
type AcceptToSRequest struct {
	Accept bool `json:"accept"`
}

// SetCountryRequest is the payload for the /setcountry command.
type SetCountryRequest struct {
	Country string `json:"country" validate:"required,len=2"`
}

// QueueRequest is the payload for the /queue command.
type QueueRequest struct {
	Races  []string `json:"races" validate:"required,min=1,max=2"`
	Vetoes []string `json:"vetoes" validate:"max=3"`
}

// ReportResultRequest is the payload a participant submits after a match.
type ReportResultRequest struct {
	MatchID int64  `json:"match_id" validate:"required"`
	Result  string `json:"result" validate:"required,oneof=win loss draw abort"`
}

// UploadReplayRequest carries the metadata accompanying a replay binary
// upload; the binary itself is streamed separately (the raw request body).
type UploadReplayRequest struct {
	MatchID  int64  `json:"match_id" validate:"required"`
	Filename string `json:"filename" validate:"required"`
}
