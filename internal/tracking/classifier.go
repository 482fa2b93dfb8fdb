// Viewguard - View Tracking Integrity Service
// Copyright 2026 Husarkar (husarkar-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/husarkar-hub/viewguard

// Package tracking implements the view admission pipeline: the bot
// classifier, the abuse guard, and the tracker that turns admitted events
// into counter increments and ledger rows.
package tracking

import "strings"

// botPattern is one entry of the signature table. Matching is
// case-insensitive substring; the first match wins.
type botPattern struct {
	label string
	token string
}

// defaultBotPatterns covers known crawlers, HTTP client libraries and CLI
// tools, headless/automation frameworks, and monitoring probes. Order puts
// the most specific names before the generic tokens so the label reported
// for a match stays meaningful.
var defaultBotPatterns = []botPattern{
	// Search engine crawlers
	{"googlebot", "googlebot"},
	{"bingbot", "bingbot"},
	{"yandexbot", "yandex"},
	{"baiduspider", "baiduspider"},
	{"duckduckbot", "duckduckbot"},
	{"slurp", "slurp"},
	{"applebot", "applebot"},

	// Social/link preview fetchers
	{"facebook", "facebookexternalhit"},
	{"twitterbot", "twitterbot"},
	{"telegrambot", "telegrambot"},
	{"slackbot", "slackbot"},
	{"discordbot", "discordbot"},
	{"whatsapp", "whatsapp"},

	// HTTP client libraries and CLI tools
	{"curl", "curl"},
	{"wget", "wget"},
	{"python-requests", "python-requests"},
	{"python-urllib", "python-urllib"},
	{"go-http-client", "go-http-client"},
	{"okhttp", "okhttp"},
	{"java-client", "java/"},
	{"apache-httpclient", "apache-httpclient"},
	{"libwww", "libwww"},
	{"scrapy", "scrapy"},
	{"aiohttp", "aiohttp"},
	{"axios", "axios"},
	{"node-fetch", "node-fetch"},

	// Headless browsers and automation tools
	{"headless", "headless"},
	{"phantomjs", "phantomjs"},
	{"selenium", "selenium"},
	{"puppeteer", "puppeteer"},
	{"playwright", "playwright"},
	{"electron", "electron"},

	// Monitoring and uptime probes
	{"pingdom", "pingdom"},
	{"uptimerobot", "uptimerobot"},
	{"statuscake", "statuscake"},
	{"site24x7", "site24x7"},
	{"newrelic", "newrelicpinger"},

	// Generic tokens last: anything self-identifying as a bot
	{"spider", "spider"},
	{"crawler", "crawler"},
	{"scraper", "scraper"},
	{"bot", "bot"},
}

// BotClassifier decides whether a client signature belongs to a non-human
// client. Pure rule table, no I/O.
type BotClassifier struct {
	patterns []botPattern
}

// NewBotClassifier builds a classifier from the built-in table plus any
// operator-supplied extra patterns. Extra patterns are labeled "custom".
func NewBotClassifier(extraPatterns []string) *BotClassifier {
	patterns := make([]botPattern, 0, len(defaultBotPatterns)+len(extraPatterns))
	patterns = append(patterns, defaultBotPatterns...)
	for _, p := range extraPatterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			patterns = append(patterns, botPattern{label: "custom", token: p})
		}
	}
	return &BotClassifier{patterns: patterns}
}

// Classify reports whether the signature matches the bot table and, when it
// does, the label of the first matching pattern.
//
// An empty signature is inconclusive, not a bot: privacy-hardened clients
// strip the User-Agent header, and dropping them all would undercount real
// readers. Explicit pattern matches always classify as bot.
func (c *BotClassifier) Classify(signature string) (bool, string) {
	if signature == "" {
		return false, ""
	}
	sig := strings.ToLower(signature)
	for _, p := range c.patterns {
		if strings.Contains(sig, p.token) {
			return true, p.label
		}
	}
	return false, ""
}
