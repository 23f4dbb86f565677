// Package descriptor reads the static farm description files (layout, plant
// catalog, tool registry) into a format-neutral record tree.
//
// Two encodings are accepted. Legacy deployments ship XML where every record
// is an element whose attributes carry the data (potLayout.xml,
// plantTypes.xml, tools.xml). New deployments may use TOML with arrays of
// tables using the same keys. Both end up as Records with string attributes
// so the typed parsers in crops and layout validate one shape.
package descriptor

import (
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// ErrUnsupportedFormat is returned for files that are neither .xml nor .toml.
var ErrUnsupportedFormat = errors.New("unsupported description format")

// Record is one element of a description file.
type Record struct {
	Tag      string
	Attrs    map[string]string
	Children []Record
}

// Document is the list of top-level records of a description file.
type Document struct {
	Path    string
	Records []Record
}

// Read loads and parses the description file at path.
func Read(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var records []Record
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xml":
		records, err = parseXML(data)
	case ".toml":
		records, err = parseTOML(data)
	default:
		return nil, fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &Document{Path: path, Records: records}, nil
}

// Has reports whether the attribute is present.
func (r Record) Has(key string) bool {
	_, ok := r.Attrs[key]
	return ok
}

// String returns a required, non-empty attribute.
func (r Record) String(key string) (string, error) {
	v, ok := r.Attrs[key]
	if !ok || strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("attribute %q missing", key)
	}
	return strings.TrimSpace(v), nil
}

// Int returns a required integer attribute.
func (r Record) Int(key string) (int, error) {
	v, err := r.String(key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("attribute %q: %q is not an integer", key, v)
	}
	return n, nil
}

// Bool returns a required flag attribute. 0/1 and true/false are accepted.
func (r Record) Bool(key string) (bool, error) {
	v, err := r.String(key)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(v) {
	case "1", "true":
		return true, nil
	case "0", "false":
		return false, nil
	}
	return false, fmt.Errorf("attribute %q: %q is not a flag", key, v)
}

type xmlNode struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Nodes   []xmlNode  `xml:",any"`
}

func parseXML(data []byte) ([]Record, error) {
	var root xmlNode
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	return xmlChildren(root.Nodes), nil
}

func xmlChildren(nodes []xmlNode) []Record {
	records := make([]Record, 0, len(nodes))
	for _, n := range nodes {
		rec := Record{
			Tag:   n.XMLName.Local,
			Attrs: make(map[string]string, len(n.Attrs)),
		}
		for _, a := range n.Attrs {
			rec.Attrs[a.Name.Local] = a.Value
		}
		rec.Children = xmlChildren(n.Nodes)
		records = append(records, rec)
	}
	return records
}

func parseTOML(data []byte) ([]Record, error) {
	var root map[string]any
	if err := toml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	rec := tomlRecord("", root)
	if len(rec.Children) == 0 {
		return nil, errors.New("no record tables found")
	}
	return rec.Children, nil
}

// tomlRecord flattens a TOML table: scalars become attributes, nested
// tables and arrays of tables become children tagged with their key.
func tomlRecord(tag string, table map[string]any) Record {
	rec := Record{Tag: tag, Attrs: make(map[string]string)}

	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		switch v := table[k].(type) {
		case map[string]any:
			rec.Children = append(rec.Children, tomlRecord(k, v))
		case []any:
			if !isTableArray(v) {
				rec.Attrs[k] = fmt.Sprint(v)
				continue
			}
			for _, item := range v {
				rec.Children = append(rec.Children, tomlRecord(k, item.(map[string]any)))
			}
		default:
			rec.Attrs[k] = fmt.Sprint(v)
		}
	}
	return rec
}

func isTableArray(items []any) bool {
	if len(items) == 0 {
		return false
	}
	for _, item := range items {
		if _, ok := item.(map[string]any); !ok {
			return false
		}
	}
	return true
}
