package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// PartitionType is the top-level partition kind.
type PartitionType uint8

// Partition types.
const (
	PartitionTypeApp  PartitionType = 0x00
	PartitionTypeData PartitionType = 0x01
)

// String returns "app", "data" or the hex value for custom types.
func (t PartitionType) String() string {
	switch t {
	case PartitionTypeApp:
		return "app"
	case PartitionTypeData:
		return "data"
	default:
		return fmt.Sprintf("0x%02x", uint8(t))
	}
}

// ParsePartitionType parses "app", "data" or a numeric type.
func ParsePartitionType(s string) (PartitionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "app":
		return PartitionTypeApp, nil
	case "data":
		return PartitionTypeData, nil
	}
	n, err := strconv.ParseUint(strings.TrimSpace(s), 0, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: partition type %q", ErrInvalidPartitionTable, s)
	}
	return PartitionType(n), nil
}

// PartitionSubType qualifies a PartitionType. Its meaning depends on the type.
type PartitionSubType uint8

// App subtypes.
const (
	SubTypeFactory PartitionSubType = 0x00
	SubTypeOTA0    PartitionSubType = 0x10
	SubTypeOTA15   PartitionSubType = 0x1f
	SubTypeTest    PartitionSubType = 0x20
)

// Data subtypes.
const (
	SubTypeOTAData   PartitionSubType = 0x00
	SubTypePHY       PartitionSubType = 0x01
	SubTypeNVS       PartitionSubType = 0x02
	SubTypeCoreDump  PartitionSubType = 0x03
	SubTypeNVSKeys   PartitionSubType = 0x04
	SubTypeEfuse     PartitionSubType = 0x05
	SubTypeUndefined PartitionSubType = 0x06
	SubTypeESPHTTPD  PartitionSubType = 0x80
	SubTypeFAT       PartitionSubType = 0x81
	SubTypeSPIFFS    PartitionSubType = 0x82
	SubTypeLittleFS  PartitionSubType = 0x83
)

var dataSubTypeNames = map[PartitionSubType]string{
	SubTypeOTAData:   "ota",
	SubTypePHY:       "phy",
	SubTypeNVS:       "nvs",
	SubTypeCoreDump:  "coredump",
	SubTypeNVSKeys:   "nvs_keys",
	SubTypeEfuse:     "efuse",
	SubTypeUndefined: "undefined",
	SubTypeESPHTTPD:  "esphttpd",
	SubTypeFAT:       "fat",
	SubTypeSPIFFS:    "spiffs",
	SubTypeLittleFS:  "littlefs",
}

// SubTypeName returns the CSV name of st for partition type t.
func SubTypeName(t PartitionType, st PartitionSubType) string {
	switch t {
	case PartitionTypeApp:
		switch {
		case st == SubTypeFactory:
			return "factory"
		case st == SubTypeTest:
			return "test"
		case st >= SubTypeOTA0 && st <= SubTypeOTA15:
			return fmt.Sprintf("ota_%d", st-SubTypeOTA0)
		}
	case PartitionTypeData:
		if name, ok := dataSubTypeNames[st]; ok {
			return name
		}
	}
	return fmt.Sprintf("0x%02x", uint8(st))
}

// ParseSubType parses a subtype name in the context of type t.
func ParseSubType(t PartitionType, s string) (PartitionSubType, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	switch t {
	case PartitionTypeApp:
		switch {
		case norm == "factory":
			return SubTypeFactory, nil
		case norm == "test":
			return SubTypeTest, nil
		case strings.HasPrefix(norm, "ota_"):
			n, err := strconv.Atoi(strings.TrimPrefix(norm, "ota_"))
			if err != nil || n < 0 || n > 15 {
				return 0, fmt.Errorf("%w: app subtype %q", ErrInvalidPartitionTable, s)
			}
			return SubTypeOTA0 + PartitionSubType(n), nil
		}
	case PartitionTypeData:
		for st, name := range dataSubTypeNames {
			if name == norm {
				return st, nil
			}
		}
	}
	n, err := strconv.ParseUint(norm, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: subtype %q for type %s", ErrInvalidPartitionTable, s, t)
	}
	return PartitionSubType(n), nil
}

// Partition is one entry of a partition table.
type Partition struct {
	Name      string
	Type      PartitionType
	SubType   PartitionSubType
	Offset    uint32
	Size      uint32
	Encrypted bool
	ReadOnly  bool
}

// End returns the offset one past the partition.
func (p Partition) End() uint32 {
	return p.Offset + p.Size
}

// PartitionTable is an ordered list of partitions.
type PartitionTable struct {
	Partitions []Partition
}

// Find returns the partition with the given name.
func (t *PartitionTable) Find(name string) (*Partition, bool) {
	for i := range t.Partitions {
		if t.Partitions[i].Name == name {
			return &t.Partitions[i], true
		}
	}
	return nil, false
}

// FindByType returns the first partition of type pt.
func (t *PartitionTable) FindByType(pt PartitionType) (*Partition, bool) {
	for i := range t.Partitions {
		if t.Partitions[i].Type == pt {
			return &t.Partitions[i], true
		}
	}
	return nil, false
}

// FindBySubType returns the first partition matching both type and subtype.
func (t *PartitionTable) FindBySubType(pt PartitionType, st PartitionSubType) (*Partition, bool) {
	for i := range t.Partitions {
		if t.Partitions[i].Type == pt && t.Partitions[i].SubType == st {
			return &t.Partitions[i], true
		}
	}
	return nil, false
}

// AppPartition returns the partition the application image is written to:
// the one named "factory" if present, otherwise the first app partition.
func (t *PartitionTable) AppPartition() (*Partition, error) {
	if p, ok := t.Find("factory"); ok {
		return p, nil
	}
	if p, ok := t.FindByType(PartitionTypeApp); ok {
		return p, nil
	}
	return nil, ErrNoAppPartition
}
