/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

// Session-level failures, surfaced to the originating caller only.
// None of these are ever allowed to crash the process.
var (
	errLobbyNotFound    = errors.New("lobby not found")
	errGameInProgress   = errors.New("game already in progress")
	errLobbyFull        = errors.New("lobby is full")
	errNotHost          = errors.New("only the host may do that")
	errNotSeated        = errors.New("player not in lobby")
	errNotYourTurn      = errors.New("not your turn")
	errNoActiveRound    = errors.New("no active discussion round")
	errTooFewSeats      = errors.New("need at least 3 players to start")
	errBadImposterCount = errors.New("imposter count must be lower than the player count")
	errGameNotEnded     = errors.New("game has not ended yet")
	errEmptyCatalog     = errors.New("card catalog is empty")
)

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

func newPage(title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(`<style>`)
	htmlBody.WriteString(`html,body,a{display:block;height:100%;width:100%;text-decoration:none;color:inherit;cursor:auto;}</style>`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", title))
	htmlBody.WriteString(fmt.Sprintf("<body><a href=\"/\">%s</a></body></html>", body))

	return htmlBody.String()
}
