package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/nextlevelbuilder/discordlite/internal/chat"
)

var (
	styleOK     = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	styleWarn   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	styleMuted  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	styleAuthor = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
)

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printGuilds(w io.Writer, guilds []chat.Guild, selectedID string) error {
	if jsonOutput {
		return printJSON(w, guilds)
	}
	if len(guilds) == 0 {
		fmt.Fprintln(w, "No guilds found.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, " \tID\tNAME\n")
	for _, g := range guilds {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", marker(g.ID == selectedID), g.ID, truncateStr(g.Name, 50))
	}
	return tw.Flush()
}

func printChannels(w io.Writer, channels []chat.Channel, selectedID string) error {
	if jsonOutput {
		return printJSON(w, channels)
	}
	if len(channels) == 0 {
		fmt.Fprintln(w, "No text channels found.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, " \tID\tNAME\tKIND\n")
	for _, c := range channels {
		fmt.Fprintf(tw, "%s\t%s\t#%s\t%s\n", marker(c.ID == selectedID), c.ID, truncateStr(c.Name, 40), strings.ToLower(string(c.Kind)))
	}
	return tw.Flush()
}

func printMessages(w io.Writer, msgs []chat.Message) error {
	if jsonOutput {
		return printJSON(w, msgs)
	}
	if len(msgs) == 0 {
		fmt.Fprintln(w, "No messages.")
		return nil
	}
	for _, m := range msgs {
		printMessage(w, m)
	}
	return nil
}

func printMessage(w io.Writer, m chat.Message) {
	if jsonOutput {
		data, _ := json.Marshal(m)
		fmt.Fprintln(w, string(data))
		return
	}
	edited := ""
	if m.EditedAt != nil {
		edited = styleMuted.Render(" (edited)")
	}
	fmt.Fprintf(w, "%s %s%s\n  %s\n",
		styleMuted.Render(m.Timestamp.Local().Format(time.DateTime)),
		styleAuthor.Render(m.AuthorUsername),
		edited,
		strings.ReplaceAll(m.Content, "\n", "\n  "),
	)
}

func marker(selected bool) string {
	if selected {
		return "*"
	}
	return " "
}

func truncateStr(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
