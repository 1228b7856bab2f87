package tui

import "github.com/mmcdole/marquee/internal/domain"

// Message types for the TUI

// ProgressMsg reports upload progress of one asset row
type ProgressMsg struct {
	Asset   int
	Percent float64
}

// PublishDoneMsg signals the end of a publish job
type PublishDoneMsg struct {
	Result string
	Err    error
}

// TitlesLoadedMsg carries a catalog read
type TitlesLoadedMsg struct {
	Titles []domain.Title
	Stale  bool
	Err    error
}

// TitleLoadedMsg carries the detail read for the inspector
type TitleLoadedMsg struct {
	ID    domain.TitleID
	Title *domain.Title
	Err   error
}

// StatusMsg sets the status line
type StatusMsg struct {
	Message string
	IsError bool
}
