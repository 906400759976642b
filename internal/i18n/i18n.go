// Package i18n holds the translated user-facing messages of rs485ctl.
package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Message keys
const (
	MsgOpening      = "msg.opening"
	MsgConnected    = "msg.connected"
	MsgSent         = "msg.sent"
	MsgNoFrame      = "msg.no_frame"
	MsgFrame        = "msg.frame"
	MsgStopping     = "msg.stopping"
	MsgNoPorts      = "msg.no_ports"
	MsgNoPortsMatch = "msg.no_ports_match"
	MsgFoundPorts   = "msg.found_ports"
	MsgCapturing    = "msg.capturing"
	MsgCaptureDone  = "msg.capture_done"
	MsgPressCtrlC   = "msg.press_ctrl_c"
	MsgEchoing      = "msg.echoing"
	MsgPolling      = "msg.polling"
	MsgPollSummary  = "msg.poll_summary"
	MsgPinSet       = "msg.pin_set"
	MsgEnterData    = "msg.enter_data"
)

var supported = []language.Tag{
	language.AmericanEnglish,
	language.German,
	language.Swedish,
}

var matcher = language.NewMatcher(supported)

//nolint:errcheck
func init() {
	// --- English (default) ---
	message.SetString(language.AmericanEnglish, MsgOpening, "Opening %s (%s)...")
	message.SetString(language.AmericanEnglish, MsgConnected, "Connected to %s")
	message.SetString(language.AmericanEnglish, MsgSent, "Sent %d bytes")
	message.SetString(language.AmericanEnglish, MsgNoFrame, "No frame within %v")
	message.SetString(language.AmericanEnglish, MsgFrame, "Frame (%d bytes)")
	message.SetString(language.AmericanEnglish, MsgStopping, "Received interrupt signal, shutting down...")
	message.SetString(language.AmericanEnglish, MsgNoPorts, "No serial ports found")
	message.SetString(language.AmericanEnglish, MsgNoPortsMatch, "No serial ports found matching filter: %s")
	message.SetString(language.AmericanEnglish, MsgFoundPorts, "Found %d serial port(s):")
	message.SetString(language.AmericanEnglish, MsgCapturing, "Capturing frames from %s to %s")
	message.SetString(language.AmericanEnglish, MsgCaptureDone, "Capture complete: %d frames, %d bytes in %v")
	message.SetString(language.AmericanEnglish, MsgPressCtrlC, "Press Ctrl+C to stop")
	message.SetString(language.AmericanEnglish, MsgEchoing, "Echoing frames on %s")
	message.SetString(language.AmericanEnglish, MsgPolling, "Polling %s every %v")
	message.SetString(language.AmericanEnglish, MsgPollSummary, "%d requests, %d responses, %d timeouts")
	message.SetString(language.AmericanEnglish, MsgPinSet, "Direction pin %s set %s")
	message.SetString(language.AmericanEnglish, MsgEnterData, "Enter data to send: ")

	// --- German (de) ---
	message.SetString(language.German, MsgOpening, "%s wird geöffnet (%s)...")
	message.SetString(language.German, MsgConnected, "Verbunden mit %s")
	message.SetString(language.German, MsgSent, "%d Bytes gesendet")
	message.SetString(language.German, MsgNoFrame, "Kein Rahmen innerhalb von %v")
	message.SetString(language.German, MsgFrame, "Rahmen (%d Bytes)")
	message.SetString(language.German, MsgStopping, "Unterbrechung empfangen, wird beendet...")
	message.SetString(language.German, MsgNoPorts, "Keine seriellen Ports gefunden")
	message.SetString(language.German, MsgNoPortsMatch, "Keine seriellen Ports für Filter %s gefunden")
	message.SetString(language.German, MsgFoundPorts, "%d serielle(r) Port(s) gefunden:")
	message.SetString(language.German, MsgCapturing, "Rahmen von %s werden in %s aufgezeichnet")
	message.SetString(language.German, MsgCaptureDone, "Aufzeichnung beendet: %d Rahmen, %d Bytes in %v")
	message.SetString(language.German, MsgPressCtrlC, "Strg+C zum Beenden")
	message.SetString(language.German, MsgEchoing, "Rahmen auf %s werden zurückgesendet")
	message.SetString(language.German, MsgPolling, "%s wird alle %v abgefragt")
	message.SetString(language.German, MsgPollSummary, "%d Anfragen, %d Antworten, %d Zeitüberschreitungen")
	message.SetString(language.German, MsgPinSet, "Richtungspin %s auf %s gesetzt")
	message.SetString(language.German, MsgEnterData, "Zu sendende Daten eingeben: ")

	// --- Swedish (sv) ---
	message.SetString(language.Swedish, MsgOpening, "Öppnar %s (%s)...")
	message.SetString(language.Swedish, MsgConnected, "Ansluten till %s")
	message.SetString(language.Swedish, MsgSent, "Skickade %d byte")
	message.SetString(language.Swedish, MsgNoFrame, "Ingen ram inom %v")
	message.SetString(language.Swedish, MsgFrame, "Ram (%d byte)")
	message.SetString(language.Swedish, MsgStopping, "Avbrott mottaget, avslutar...")
	message.SetString(language.Swedish, MsgNoPorts, "Inga serieportar hittades")
	message.SetString(language.Swedish, MsgNoPortsMatch, "Inga serieportar matchar filtret: %s")
	message.SetString(language.Swedish, MsgFoundPorts, "Hittade %d serieport(ar):")
	message.SetString(language.Swedish, MsgCapturing, "Spelar in ramar från %s till %s")
	message.SetString(language.Swedish, MsgCaptureDone, "Inspelning klar: %d ramar, %d byte på %v")
	message.SetString(language.Swedish, MsgPressCtrlC, "Tryck Ctrl+C för att avsluta")
	message.SetString(language.Swedish, MsgEchoing, "Ekar ramar på %s")
	message.SetString(language.Swedish, MsgPolling, "Frågar %s var %v")
	message.SetString(language.Swedish, MsgPollSummary, "%d förfrågningar, %d svar, %d tidsgränser")
	message.SetString(language.Swedish, MsgPinSet, "Riktningspinne %s satt till %s")
	message.SetString(language.Swedish, MsgEnterData, "Ange data att skicka: ")
}

// Match returns the supported language closest to lang.
// Unknown or empty names fall back to English.
func Match(lang string) language.Tag {
	if lang == "" {
		return language.AmericanEnglish
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return language.AmericanEnglish
	}
	_, index, _ := matcher.Match(tag)
	return supported[index]
}

// NewPrinter returns a printer for the language named by lang
func NewPrinter(lang string) *message.Printer {
	return message.NewPrinter(Match(lang))
}
