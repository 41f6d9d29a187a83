package models

type MessageType int

const (
	User MessageType = iota
	Output
	Prompt
	Program
	Error
)

type Message struct {
	Content string
	Type    MessageType
}
