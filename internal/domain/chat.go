package domain

// Chat roles accepted by the completion service.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// ChatMessage is one turn of a classification request sent to the AI
// completion service.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
