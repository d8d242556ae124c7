package prefs

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

// WarningBoilerPlate is written as the first line of every saved
// preferences file.
const WarningBoilerPlate = "# do not edit this file by hand"

// Disk is a file-backed collection of named preference values. Values
// register with Add; Save writes every registered value plus any
// not-yet-claimed value read from the file at construction time, so that a
// second Disk instance opened against the same file and registering a
// different subset of keys does not clobber the first instance's entries.
type Disk struct {
	filename string

	mu      sync.Mutex
	entries map[string]entry
	raw     map[string]string
}

// NewDisk opens filename, reading any existing "key :: value" lines into an
// internal holding area. A missing file is not an error — it is created on
// the first Save.
func NewDisk(filename string) (*Disk, error) {
	d := &Disk{
		filename: filename,
		entries:  map[string]entry{},
		raw:      map[string]string{},
	}

	if err := d.readRaw(); err != nil {
		return nil, err
	}

	return d, nil
}

func (d *Disk) readRaw() (err error) {
	f, err := os.Open(d.filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("prefs: opening %s: %w", d.filename, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	scan := bufio.NewScanner(f)
	for scan.Scan() {
		line := scan.Text()
		key, value, ok := splitKeyValue(line)
		if !ok {
			continue
		}
		d.raw[key] = value
	}
	if err := scan.Err(); err != nil {
		return fmt.Errorf("prefs: reading %s: %w", d.filename, err)
	}

	return nil
}

func splitKeyValue(line string) (key, value string, ok bool) {
	idx := strings.Index(line, "::")
	if idx < 0 {
		return "", "", false
	}
	key = strings.TrimSpace(line[:idx])
	value = strings.TrimSpace(line[idx+2:])
	if key == "" {
		return "", "", false
	}
	return key, value, true
}

// Add registers v under key. If a value for key was read from the file at
// construction (or by a later Load) and has not yet been claimed, v is
// hydrated from it immediately.
func (d *Disk) Add(key string, v entry) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.entries[key]; exists {
		return fmt.Errorf("prefs: %q is already registered", key)
	}

	d.entries[key] = v

	if raw, ok := d.raw[key]; ok {
		if err := v.setFromString(raw); err != nil {
			return fmt.Errorf("prefs: hydrating %q: %w", key, err)
		}
		delete(d.raw, key)
	}

	return nil
}

// Save writes every registered value, plus any unclaimed raw value, to the
// file, one "key :: value" line per entry, sorted by key.
func (d *Disk) Save() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	merged := make(map[string]string, len(d.entries)+len(d.raw))
	for k, v := range d.raw {
		merged[k] = v
	}
	for k, v := range d.entries {
		merged[k] = v.String()
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(WarningBoilerPlate)
	b.WriteString("\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "%s :: %s\n", k, merged[k])
	}

	if err := os.WriteFile(d.filename, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("prefs: writing %s: %w", d.filename, err)
	}

	return nil
}

// Load re-reads the file, applying each line to its registered entry if one
// exists, or holding it as a raw value for a future Add otherwise.
func (d *Disk) Load() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	f, err := os.Open(d.filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("prefs: opening %s: %w", d.filename, err)
	}
	defer f.Close()

	scan := bufio.NewScanner(f)
	for scan.Scan() {
		key, value, ok := splitKeyValue(scan.Text())
		if !ok {
			continue
		}
		if e, registered := d.entries[key]; registered {
			if err := e.setFromString(value); err != nil {
				return fmt.Errorf("prefs: loading %q: %w", key, err)
			}
			continue
		}
		d.raw[key] = value
	}
	if err := scan.Err(); err != nil {
		return fmt.Errorf("prefs: reading %s: %w", d.filename, err)
	}

	return nil
}
