// Package presenters renders session state as text for the CLI.
package presenters

import (
	"fmt"
	"strings"

	"github.com/glizzus/murmur/internal/state"
)

const noChannelsFound = "No channels found"

// BuildTree renders the channel tree rooted at the root channel, with
// each channel's users listed under it. The local user is marked with an
// asterisk.
func BuildTree(snap state.Snapshot) string {
	root, ok := snap.Channels[state.RootChannel]
	if !ok {
		return noChannelsFound
	}

	var sb strings.Builder
	writeChannel(&sb, snap, root, 0)
	return strings.TrimSuffix(sb.String(), "\n")
}

func writeChannel(sb *strings.Builder, snap state.Snapshot, ch state.Channel, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(sb, "%s%s\n", indent, channelLabel(ch))
	for _, u := range snap.UsersIn(ch.ID) {
		fmt.Fprintf(sb, "%s  - %s\n", indent, userLabel(u, u.Session == snap.Self && snap.Synced))
	}
	for _, child := range snap.Children(ch.ID) {
		writeChannel(sb, snap, child, depth+1)
	}
}

func channelLabel(ch state.Channel) string {
	label := ch.Name
	if label == "" {
		label = fmt.Sprintf("#%d", ch.ID)
	}
	if ch.Temporary {
		label += " (temporary)"
	}
	if len(ch.Links) > 0 {
		label += fmt.Sprintf(" [%d linked]", len(ch.Links))
	}
	return label
}

func userLabel(u state.User, self bool) string {
	label := u.Name
	if self {
		label += "*"
	}
	var flags []string
	switch {
	case u.Deaf:
		flags = append(flags, "deafened")
	case u.SelfDeaf:
		flags = append(flags, "self-deafened")
	}
	switch {
	case u.Mute:
		flags = append(flags, "muted")
	case u.SelfMute:
		flags = append(flags, "self-muted")
	case u.Suppress:
		flags = append(flags, "suppressed")
	}
	if u.Recording {
		flags = append(flags, "recording")
	}
	if len(flags) > 0 {
		label += " (" + strings.Join(flags, ", ") + ")"
	}
	return label
}

// BuildChannelList renders one line per channel with its id, for picking
// a target.
func BuildChannelList(snap state.Snapshot) string {
	if len(snap.Channels) == 0 {
		return noChannelsFound
	}
	var lines []string
	var walk func(id uint32, path string)
	walk = func(id uint32, path string) {
		for _, ch := range snap.Children(id) {
			p := path + "/" + ch.Name
			lines = append(lines, fmt.Sprintf("%5d  %s (%d users)", ch.ID, p, len(snap.UsersIn(ch.ID))))
			walk(ch.ID, p)
		}
	}
	if root, ok := snap.Channels[state.RootChannel]; ok {
		lines = append(lines, fmt.Sprintf("%5d  / (%d users)", root.ID, len(snap.UsersIn(root.ID))))
	}
	walk(state.RootChannel, "")
	return strings.Join(lines, "\n")
}
