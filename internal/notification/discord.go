package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/pool"
)

const (
	colorRed   = 16711680
	colorGreen = 65280

	// Discord rejects embed descriptions over 4096 characters.
	maxDescription = 4000
)

type DiscordMessage struct {
	Embeds []DiscordEmbed `json:"embeds"`
}

type DiscordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

// Notifier posts run summaries to a Discord-compatible webhook. A Notifier
// with an empty URL does nothing.
type Notifier struct {
	url    string
	client *http.Client
}

func New(url string) *Notifier {
	return &Notifier{url: url, client: &http.Client{Timeout: 10 * time.Second}}
}

func (n *Notifier) Enabled() bool { return n != nil && n.url != "" }

// NotifyReport posts the outcome of a command run.
func (n *Notifier) NotifyReport(ctx context.Context, command string, report pool.Report) error {
	if !n.Enabled() {
		return nil
	}
	return n.send(ctx, Summary(command, report))
}

// Summary renders report as an embed, red when anything failed.
func Summary(command string, report pool.Report) DiscordEmbed {
	if report.OK() {
		return DiscordEmbed{
			Title:       fmt.Sprintf("✅ %s finished", command),
			Description: report.String(),
			Color:       colorGreen,
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d/%d succeeded\n", report.Succeeded(), report.Total)
	for _, f := range report.Failures {
		line := fmt.Sprintf("\n• %s: %v", f.Name, f.Err)
		if b.Len()+len(line) > maxDescription {
			b.WriteString("\n…")
			break
		}
		b.WriteString(line)
	}
	return DiscordEmbed{
		Title:       fmt.Sprintf("🚨 %s finished with failures", command),
		Description: b.String(),
		Color:       colorRed,
	}
}

func (n *Notifier) send(ctx context.Context, embed DiscordEmbed) error {
	payload, err := json.Marshal(DiscordMessage{Embeds: []DiscordEmbed{embed}})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to send Discord notification, status code: %d", resp.StatusCode)
	}
	return nil
}
