package moderation

import (
	"testing"

	"github.com/vigil-bot/vigil/vigil/utils"
)

func TestActionTitleAndColor(t *testing.T) {
	tests := []struct {
		action    string
		wantTitle string
		wantColor int
	}{
		{action: "warn", wantTitle: "Warning", wantColor: utils.WarningColor},
		{action: "kick", wantTitle: "Kick", wantColor: utils.KickColor},
		{action: "ban", wantTitle: "Ban", wantColor: utils.ErrorColor},
		{action: "mute", wantTitle: "Mute", wantColor: utils.MuteColor},
		{action: "silence", wantTitle: "Automatic silence", wantColor: utils.MuteColor},
		{action: "unmute", wantTitle: "unmute", wantColor: colorReport},
	}

	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			if got := actionTitle(tt.action); got != tt.wantTitle {
				t.Errorf("actionTitle(%q) = %q, want %q", tt.action, got, tt.wantTitle)
			}
			if got := actionColor(tt.action); got != tt.wantColor {
				t.Errorf("actionColor(%q) = %#x, want %#x", tt.action, got, tt.wantColor)
			}
		})
	}
}
