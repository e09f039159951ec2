package chemtrack

import (
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"
)

// NoticeCookieName carries a one-shot notice across a redirect.
const NoticeCookieName = "chemtrack_notice"

// SetNotice stores a notice to be rendered by the next page load.
func SetNotice(c *fiber.Ctx, notice string) {
	if notice == "" {
		return
	}

	c.Cookie(&fiber.Cookie{
		Name:     NoticeCookieName,
		Value:    url.QueryEscape(notice),
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Expires:  time.Now().Add(5 * time.Minute),
	})
}

// PopNotice returns the pending notice, if any, and clears it so the same
// failure is never reported twice.
func PopNotice(c *fiber.Ctx) string {
	raw := c.Cookies(NoticeCookieName)
	if raw == "" {
		return ""
	}

	clearCookie(c, NoticeCookieName)

	notice, err := url.QueryUnescape(raw)
	if err != nil {
		return ""
	}
	return notice
}

func clearCookie(c *fiber.Ctx, name string) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Expires:  time.Now().Add(-time.Hour),
	})
}
