package domain

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// DeviceDescriptor describes one sensor in the static catalog.
type DeviceDescriptor struct {
	ID       string `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name"`
	Location string `yaml:"location" json:"location"`
}

// Catalog is the immutable list of known devices, in display order.
type Catalog struct {
	devices []DeviceDescriptor
	byID    map[string]int
}

var defaultCatalog = sync.OnceValue(func() Catalog {
	c, err := ParseCatalog(catalogYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded device catalog: %v", err))
	}
	return c
})

// DefaultCatalog returns the catalog compiled into the binary.
func DefaultCatalog() Catalog {
	return defaultCatalog()
}

// ParseCatalog reads a YAML catalog document. Ids must be non-blank and unique.
func ParseCatalog(data []byte) (Catalog, error) {
	var doc struct {
		Devices []DeviceDescriptor `yaml:"devices"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog: %w", err)
	}
	return NewCatalog(doc.Devices...)
}

// NewCatalog builds a catalog from descriptors.
func NewCatalog(devices ...DeviceDescriptor) (Catalog, error) {
	if len(devices) == 0 {
		return Catalog{}, errors.New("catalog has no devices")
	}
	c := Catalog{
		devices: make([]DeviceDescriptor, 0, len(devices)),
		byID:    make(map[string]int, len(devices)),
	}
	for _, d := range devices {
		d.ID = strings.TrimSpace(d.ID)
		if d.ID == "" {
			return Catalog{}, errors.New("catalog device with empty id")
		}
		if _, dup := c.byID[d.ID]; dup {
			return Catalog{}, fmt.Errorf("duplicate catalog device %q", d.ID)
		}
		c.byID[d.ID] = len(c.devices)
		c.devices = append(c.devices, d)
	}
	return c, nil
}

// Devices returns a copy of the catalog entries.
func (c Catalog) Devices() []DeviceDescriptor {
	out := make([]DeviceDescriptor, len(c.devices))
	copy(out, c.devices)
	return out
}

// Lookup finds a device by id.
func (c Catalog) Lookup(id string) (DeviceDescriptor, bool) {
	i, ok := c.byID[id]
	if !ok {
		return DeviceDescriptor{}, false
	}
	return c.devices[i], true
}

// Default is the first device in the catalog.
func (c Catalog) Default() DeviceDescriptor {
	if len(c.devices) == 0 {
		return DeviceDescriptor{}
	}
	return c.devices[0]
}

// Len reports the number of devices.
func (c Catalog) Len() int { return len(c.devices) }
