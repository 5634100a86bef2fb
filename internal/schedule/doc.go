// Package schedule parses cron expressions and runs work at the times they
// describe. It drives scheduled playback from the CLI.
package schedule
