package parser

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scrapegate/internal/api"
)

func parseInto(t *testing.T, rawQuery string, out interface{}) {
	t.Helper()
	app := fiber.New()
	app.Get("/t", func(c *fiber.Ctx) error {
		return ParseQuery(c, out)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/t?"+rawQuery, nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestParseQueryScrapeParams(t *testing.T) {
	var p api.GetScrapeParams
	parseInto(t, "url=https%3A%2F%2Fexample.com&format=html&render_js=true&wait_for=250&only_main_content=false", &p)

	assert.Equal(t, "https://example.com", p.URL)
	assert.Equal(t, "html", p.Format)
	assert.True(t, p.RenderJS)
	assert.Equal(t, 250, p.WaitFor)
	require.NotNil(t, p.OnlyMainContent)
	assert.False(t, *p.OnlyMainContent)
}

func TestParseQueryLeavesMissingFieldsZero(t *testing.T) {
	var p api.GetScrapeParams
	parseInto(t, "url=https%3A%2F%2Fexample.com", &p)

	assert.False(t, p.RenderJS)
	assert.Nil(t, p.OnlyMainContent)
	assert.Zero(t, p.Timeout)
}

func TestParseQueryStringSlices(t *testing.T) {
	var out struct {
		Patterns []string `form:"patterns"`
	}
	parseInto(t, "patterns=%2Fdocs%2F*%2C%2Fblog%2F*", &out)
	assert.Equal(t, []string{"/docs/*", "/blog/*"}, out.Patterns)
}

func TestParseQueryRejectsNonStruct(t *testing.T) {
	app := fiber.New()
	var gotErr error
	app.Get("/t", func(c *fiber.Ctx) error {
		v := 5
		gotErr = ParseQuery(c, &v)
		return nil
	})
	_, err := app.Test(httptest.NewRequest("GET", "/t", nil))
	require.NoError(t, err)
	assert.Error(t, gotErr)
}
