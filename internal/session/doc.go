// Package session manages remote rendering sessions for crawl workers.
//
// A Transport opens Sessions against an endpoint. Three transports are
// provided:
//
//   - WebDriverTransport speaks W3C WebDriver over HTTP (Selenium,
//     chromedriver, Appium).
//   - CDPTransport drives a Chrome DevTools endpoint through chromedp.
//   - HTTPTransport fetches pages directly without rendering.
//
// A Manager owns the connection policy: sessions are opened lazily, the
// primary endpoint is tried first and then a fixed fallback list, and a
// session that reports ErrSessionLost is replaced wholesale by Reconnect.
// Each Session is used by exactly one worker at a time.
package session
