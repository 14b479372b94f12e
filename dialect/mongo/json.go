package mongo

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// ExtJSON renders a command or stage document as relaxed extended JSON.
func ExtJSON(doc bson.D) (string, error) {
	b, err := bson.MarshalExtJSON(doc, false, false)
	if err != nil {
		return "", fmt.Errorf("mongo: render document: %w", err)
	}
	return string(b), nil
}

// JSON renders the pipeline as a JSON array of extended JSON stages.
func (p Pipeline) JSON() (string, error) {
	var b strings.Builder
	b.WriteByte('[')
	for i, stage := range p {
		if i > 0 {
			b.WriteByte(',')
		}
		s, err := ExtJSON(stage)
		if err != nil {
			return "", err
		}
		b.WriteString(s)
	}
	b.WriteByte(']')
	return b.String(), nil
}
