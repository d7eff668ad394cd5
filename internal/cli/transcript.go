package cli

import "strings"

func isBlankTranscript(transcript string) bool {
	return strings.TrimSpace(transcript) == ""
}

func noSpeechHint() string {
	return "No speech detected. The transcript is empty; check that the file contains audible speech."
}
