package domain

import "strings"

// InputRequestFrame is the interviewer frame that opens a candidate turn.
const InputRequestFrame = "input_request"

// Author identifies who wrote a chat message.
type Author string

const (
	AuthorInterviewer Author = "Interviewer"
	AuthorCandidate   Author = "Candidate"
)

// Tag is the wire prefix for a, e.g. "Candidate:".
func (a Author) Tag() string {
	return string(a) + ":"
}

// AuthorFromTag maps a wire tag back to an Author.
func AuthorFromTag(tag string) (Author, bool) {
	switch tag {
	case AuthorInterviewer.Tag():
		return AuthorInterviewer, true
	case AuthorCandidate.Tag():
		return AuthorCandidate, true
	default:
		return "", false
	}
}

// ChatMessage is one line of the interview conversation.
type ChatMessage struct {
	Author Author `json:"author"`
	Text   string `json:"text"`
}

// ParseChatFrame splits "<Tag> <body>" into a message. ok is false when the
// frame has no space or carries an unknown author tag.
func ParseChatFrame(frame string) (ChatMessage, bool) {
	tag, body, found := strings.Cut(frame, " ")
	if !found {
		return ChatMessage{}, false
	}
	author, ok := AuthorFromTag(tag)
	if !ok {
		return ChatMessage{}, false
	}
	return ChatMessage{Author: author, Text: body}, true
}

// ChatView summarises the chat shell for the UI.
type ChatView struct {
	Messages    []ChatMessage `json:"messages"`
	InputActive bool          `json:"inputActive"`
	Connected   bool          `json:"connected"`
}
