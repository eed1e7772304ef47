package commands

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf16"

	"github.com/hbollon/go-edlib"

	"github.com/valpere/nebo/internal/services"
	"github.com/valpere/nebo/internal/version"
	"github.com/valpere/nebo/internal/view"
)

// Telegram rejects messages longer than this, counted in UTF-16 code units
const maxMessageLength = 4096

// knownCommands feeds the "did you mean" suggestion for mistyped commands
var knownCommands = []string{"start", "help", "weather", "units", "ask", "chat", "version"}

const helpText = `<b>Nebo</b> shows the weather for a city or your location and answers questions about it.

/weather &lt;city&gt; - weather for a city
/units [c|f] - switch between Celsius and Fahrenheit
/ask &lt;question&gt; - ask the assistant about the current weather
/chat - show the conversation so far
/version - build information
/help - this message

You can also just type a city name or share your location.`

// FormatWeather renders a weather view as an HTML message
func FormatWeather(v *view.WeatherView) string {
	if v == nil {
		return "No weather loaded yet. Type a city name or share your location."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>%s</b>\n", v.Current.Emoji, html.EscapeString(v.City))
	fmt.Fprintf(&b, "🌡 %s, %s\n", v.Current.Temperature, html.EscapeString(v.Current.Description))
	fmt.Fprintf(&b, "💧 Humidity %s   💨 Wind %s\n", v.Current.Humidity, v.Current.Wind)
	fmt.Fprintf(&b, "🌅 %s   🌇 %s\n", v.Current.Sunrise, v.Current.Sunset)
	if v.AQI != nil {
		fmt.Fprintf(&b, "🌬 Air quality: %d (%s)\n", v.AQI.Index, v.AQI.Label)
	}
	fmt.Fprintf(&b, "🔆 UV index: %s\n", v.UV)

	if len(v.Hourly) > 0 {
		b.WriteString("\n<b>Next hours</b>\n")
		writePoints(&b, v.Hourly)
	}
	if len(v.Daily) > 0 {
		b.WriteString("\n<b>Next days</b>\n")
		writePoints(&b, v.Daily)
	}

	return strings.TrimRight(b.String(), "\n")
}

func writePoints(b *strings.Builder, points []view.PointView) {
	for _, p := range points {
		fmt.Fprintf(b, "<code>%s</code> %s %s %s\n", p.Label, p.Emoji, p.Temperature, html.EscapeString(p.Description))
	}
}

// FormatTranscript renders the chat history, dropping the oldest turns when it would not fit one message
func FormatTranscript(turns []services.ChatTurn) string {
	if len(turns) == 0 {
		return "No questions yet. Ask one with /ask &lt;question&gt;."
	}

	lines := make([]string, 0, len(turns))
	for _, turn := range turns {
		prefix := "🙋"
		if turn.Role == services.RoleAssistant {
			prefix = "🤖"
		}
		lines = append(lines, prefix+" "+turn.Text)
	}

	text := strings.Join(lines, "\n\n")
	for textLength(text) > maxMessageLength && len(lines) > 1 {
		lines = lines[1:]
		text = "…\n\n" + strings.Join(lines, "\n\n")
	}
	return escapeBounded(text)
}

// FormatAnswer renders one assistant reply
func FormatAnswer(text string) string {
	return escapeBounded(text)
}

// escapeBounded cuts plain text to the message limit on a rune boundary, then escapes it.
// Telegram counts the text after entity parsing, in UTF-16 code units.
func escapeBounded(text string) string {
	if textLength(text) <= maxMessageLength {
		return html.EscapeString(text)
	}

	const ellipsis = "…"
	budget := maxMessageLength - textLength(ellipsis)
	var b strings.Builder
	for _, r := range text {
		n := utf16.RuneLen(r)
		if n < 0 {
			n = 1
		}
		if budget-n < 0 {
			break
		}
		budget -= n
		b.WriteRune(r)
	}
	return html.EscapeString(b.String()) + ellipsis
}

func textLength(text string) int {
	n := 0
	for _, r := range text {
		if l := utf16.RuneLen(r); l > 0 {
			n += l
		} else {
			n++
		}
	}
	return n
}

// FormatVersion renders build information
func FormatVersion(info version.Info) string {
	return fmt.Sprintf(`<b>%s</b>

Version: %s
Commit: %s
Built: %s
Go: %s`,
		version.AppName, info.Version, info.GitCommit, info.BuildTime, info.GoVersion)
}

// SuggestCommand returns the known command closest to a mistyped one, or "" when none is close
func SuggestCommand(input string) string {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return ""
	}
	cmd := strings.TrimPrefix(fields[0], "/")
	if at := strings.Index(cmd, "@"); at >= 0 {
		cmd = cmd[:at]
	}
	cmd = strings.ToLower(cmd)
	if cmd == "" {
		return ""
	}

	match, err := edlib.FuzzySearchThreshold(cmd, knownCommands, 0.5, edlib.Levenshtein)
	if err != nil {
		return ""
	}
	return match
}

// commandArgs returns everything after the command word
func commandArgs(text string) string {
	parts := strings.SplitN(strings.TrimSpace(text), " ", 2)
	if len(parts) < 2 {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
