package security

import (
	"strings"
)

// botUserAgents covers crawlers, link-preview agents, and scripted
// clients. Their scans are still counted but flagged in the scan log.
var botUserAgents = []string{
	"googlebot",
	"bingbot",
	"slackbot",
	"twitterbot",
	"facebookexternalhit",
	"linkedinbot",
	"whatsapp",
	"telegrambot",
	"discordbot",
	"bot",
	"crawler",
	"spider",
	"scraper",
	"curl",
	"wget",
	"python-requests",
	"go-http-client",
	"node-fetch",
	"axios",
}

// IsBot classifies a User-Agent. Bot scans are never blocked on the
// redirect path; the flag only annotates the scan log so stats can
// separate human scans from link-preview fetches.
func IsBot(userAgent string) bool {
	if userAgent == "" {
		return true
	}
	lower := strings.ToLower(userAgent)
	for _, pattern := range botUserAgents {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// mobileMarkers identify mobile browsers for device-aware error pages.
var mobileMarkers = []string{
	"mobile",
	"android",
	"iphone",
	"ipad",
	"ipod",
	"windows phone",
}

// IsMobile reports whether the User-Agent belongs to a mobile browser.
// Mobile browsers are more likely to block storage access across the
// redirect boundary, so the not-found page gives them different guidance.
func IsMobile(userAgent string) bool {
	lower := strings.ToLower(userAgent)
	for _, marker := range mobileMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
