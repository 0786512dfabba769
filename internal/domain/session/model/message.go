// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import "strings"

// Message is a notification payload: plain text or an embed.
type Message struct {
	Text  string `json:"text,omitempty"`
	Embed *Embed `json:"embed,omitempty"`
}

// Embed is a titled list of ordered name/value fields.
type Embed struct {
	Title  string       `json:"title,omitempty"`
	Fields []EmbedField `json:"fields,omitempty"`
}

// EmbedField is one row of an embed.
type EmbedField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Text builds a plain text message.
func Text(s string) Message {
	return Message{Text: s}
}

// AddField appends a row and returns the embed for chaining.
func (e *Embed) AddField(name, value string) *Embed {
	e.Fields = append(e.Fields, EmbedField{Name: name, Value: value})
	return e
}

// String renders the message as plain text, used by log sinks.
func (m Message) String() string {
	if m.Embed == nil {
		return m.Text
	}
	var b strings.Builder
	if m.Text != "" {
		b.WriteString(m.Text)
		b.WriteString("\n")
	}
	if m.Embed.Title != "" {
		b.WriteString(m.Embed.Title)
	}
	for _, f := range m.Embed.Fields {
		b.WriteString("\n")
		b.WriteString(f.Name)
		b.WriteString(": ")
		b.WriteString(f.Value)
	}
	return b.String()
}
