// Package diffparser streams an osmChange document (spec.md §4.3,
// C3) into typed Create/Modify/Delete actions, discarding way and
// relation elements since only nodes carry the defibrillator tag.
package diffparser

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/openaedmap/aedcore/internal/core/apperr"
)

// ActionType names the osmChange wrapper element a node was found in.
type ActionType string

const (
	ActionCreate ActionType = "create"
	ActionModify ActionType = "modify"
	ActionDelete ActionType = "delete"
)

// Node is a single <node> element's attributes and tags.
type Node struct {
	ID        int64
	Lat       float64
	Lon       float64
	Version   int64
	Changeset int64
	UID       int64
	Tags      map[string]string
}

// Action is one osmChange <create>/<modify>/<delete> wrapper and the
// node elements found inside it.
type Action struct {
	Type  ActionType
	Nodes []Node
}

type tagXML struct {
	K string `xml:"k,attr"`
	V string `xml:"v,attr"`
}

type nodeXML struct {
	ID        int64    `xml:"id,attr"`
	Lat       float64  `xml:"lat,attr"`
	Lon       float64  `xml:"lon,attr"`
	Version   string   `xml:"version,attr"`
	Changeset int64    `xml:"changeset,attr"`
	UID       int64    `xml:"uid,attr"`
	Tags      []tagXML `xml:"tag"`
}

func (n nodeXML) toNode() (Node, error) {
	version, err := parseVersion(n.Version)
	if err != nil {
		return Node{}, err
	}
	tags := make(map[string]string, len(n.Tags))
	for _, t := range n.Tags {
		tags[t.K] = t.V
	}
	return Node{
		ID:        n.ID,
		Lat:       n.Lat,
		Lon:       n.Lon,
		Version:   version,
		Changeset: n.Changeset,
		UID:       n.UID,
		Tags:      tags,
	}, nil
}

// parseVersion tolerates both integer ("3") and float ("3.0") forms,
// since some replication sources emit the latter.
func parseVersion(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse version %q: %w", s, err)
	}
	return int64(f), nil
}

// Parse streams r as an osmChange document and returns every action
// in document order. Way and relation elements are skipped; an
// unrecognized top-level wrapper yields apperr.ErrMalformedDiff.
func Parse(r io.Reader) ([]Action, error) {
	dec := xml.NewDecoder(r)
	var actions []Action

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", apperr.ErrMalformedDiff, err)
		}

		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch strings.ToLower(se.Name.Local) {
		case "osmchange":
			continue
		case string(ActionCreate), string(ActionModify), string(ActionDelete):
			action, err := parseActionBody(dec, ActionType(strings.ToLower(se.Name.Local)))
			if err != nil {
				return nil, err
			}
			actions = append(actions, action)
		default:
			return nil, fmt.Errorf("%w: unknown action wrapper %s", apperr.ErrMalformedDiff, se.Name.Local)
		}
	}

	return actions, nil
}

// parseActionBody consumes one <create>/<modify>/<delete> wrapper,
// decoding its <node> children and skipping <way>/<relation>.
func parseActionBody(dec *xml.Decoder, kind ActionType) (Action, error) {
	action := Action{Type: kind}

	for {
		tok, err := dec.Token()
		if err != nil {
			return Action{}, fmt.Errorf("%w: %w", apperr.ErrMalformedDiff, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch strings.ToLower(t.Name.Local) {
			case "node":
				var nx nodeXML
				if err := dec.DecodeElement(&nx, &t); err != nil {
					return Action{}, fmt.Errorf("%w: decode node: %w", apperr.ErrMalformedDiff, err)
				}
				n, err := nx.toNode()
				if err != nil {
					return Action{}, fmt.Errorf("%w: %w", apperr.ErrMalformedDiff, err)
				}
				action.Nodes = append(action.Nodes, n)
			case "way", "relation":
				if err := dec.Skip(); err != nil {
					return Action{}, fmt.Errorf("%w: skip %s: %w", apperr.ErrMalformedDiff, t.Name.Local, err)
				}
			default:
				if err := dec.Skip(); err != nil {
					return Action{}, fmt.Errorf("%w: %w", apperr.ErrMalformedDiff, err)
				}
			}
		case xml.EndElement:
			return action, nil
		}
	}
}
