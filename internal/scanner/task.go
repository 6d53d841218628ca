package scanner

import "github.com/capsaicin/scanrules/internal/httpmsg"

// Task is one active rule run against one baseline exchange.
type Task struct {
	Rule ActiveRule
	Base *httpmsg.Message
}
