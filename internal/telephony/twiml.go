package telephony

import (
	"bytes"
	"encoding/xml"
	"errors"
	"strconv"
)

// TwiML is a minimal Twilio Markup Language builder.
// It intentionally avoids any provider SDK dependency.

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlDial struct {
	XMLName  xml.Name     `xml:"Dial"`
	CallerID string       `xml:"callerId,attr,omitempty"`
	Client   *twimlClient `xml:"Client,omitempty"`
}

type twimlClient struct {
	Identity string `xml:",chardata"`
}

// AgentIdentity is the Twilio Client identity an agent's softphone registers with.
func AgentIdentity(userID int64) string {
	return "agent-" + strconv.FormatInt(userID, 10)
}

// RenderAgentBridge returns TwiML that connects the answered callee to the agent's client.
func RenderAgentBridge(userID int64, callerID string) (string, error) {
	if userID <= 0 {
		return "", errors.New("telephony: user id required for agent bridge")
	}
	r := twimlResponse{Verbs: []any{
		twimlDial{CallerID: callerID, Client: &twimlClient{Identity: AgentIdentity(userID)}},
	}}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
