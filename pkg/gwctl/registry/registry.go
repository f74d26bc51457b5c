// Package registry keeps the local list of gateway instances gwctl manages.
package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/gwctl/gwctl/pkg/gwctl/fsutil"
	"github.com/gwctl/gwctl/pkg/gwctl/logging"
)

const DefaultPathPrefix = "admin"

type Instance struct {
	ID         string `json:"id" yaml:"id"`
	IP         string `json:"ip" yaml:"ip"`
	Port       uint16 `json:"port" yaml:"port"`
	Label      string `json:"label" yaml:"label"`
	PathPrefix string `json:"path_prefix" yaml:"path_prefix"`
}

// Address is ip:port.
func (i Instance) Address() string {
	return net.JoinHostPort(i.IP, strconv.Itoa(int(i.Port)))
}

// BaseURL is the management API root, http://ip:port/prefix.
func (i Instance) BaseURL() string {
	base := "http://" + i.Address()
	if prefix := strings.Trim(i.PathPrefix, "/"); prefix != "" {
		base += "/" + prefix
	}
	return base
}

// ReloadURL sits outside the path prefix.
func (i Instance) ReloadURL() string {
	return "http://" + i.Address() + "/api/reload"
}

// DeriveID returns the first four bytes of sha256("ip:port:label") as hex.
func DeriveID(ip string, port uint16, label string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%s", ip, port, label)))
	return hex.EncodeToString(sum[:4])
}

// Registry is the instances file.
type Registry struct {
	Path   string
	Logger *zap.SugaredLogger
}

// Load returns every instance. Entries missing an id or path prefix get one,
// and the file is rewritten once when that happens.
func (r *Registry) Load() ([]Instance, error) {
	content, err := os.ReadFile(r.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var list []Instance
	if err := json.Unmarshal(content, &list); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", r.Path, err)
	}
	changed := false
	for i := range list {
		if list[i].ID == "" {
			list[i].ID = DeriveID(list[i].IP, list[i].Port, list[i].Label)
			changed = true
		}
		if list[i].PathPrefix == "" {
			list[i].PathPrefix = DefaultPathPrefix
			changed = true
		}
	}
	if changed {
		logging.OrNop(r.Logger).Debugw("Backfilled instance registry", "path", r.Path)
		if err := r.save(list); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// Add upserts inst: an entry with the same label is updated in place, else one
// with the same ip:port, else inst is appended under a derived id.
func (r *Registry) Add(inst Instance) (Instance, error) {
	if strings.TrimSpace(inst.IP) == "" {
		return Instance{}, errors.New("ip is required")
	}
	if inst.Port == 0 {
		return Instance{}, errors.New("port is required")
	}
	if strings.TrimSpace(inst.Label) == "" {
		inst.Label = fmt.Sprintf("%s:%d", inst.IP, inst.Port)
	}
	if inst.PathPrefix == "" {
		inst.PathPrefix = DefaultPathPrefix
	}
	inst.PathPrefix = strings.Trim(inst.PathPrefix, "/")

	list, err := r.Load()
	if err != nil {
		return Instance{}, err
	}

	idx := -1
	for i := range list {
		if list[i].Label == inst.Label {
			idx = i
			break
		}
	}
	if idx < 0 {
		for i := range list {
			if list[i].IP == inst.IP && list[i].Port == inst.Port {
				idx = i
				break
			}
		}
	}

	var result Instance
	if idx >= 0 {
		list[idx].IP = inst.IP
		list[idx].Port = inst.Port
		list[idx].Label = inst.Label
		list[idx].PathPrefix = inst.PathPrefix
		result = list[idx]
	} else {
		if inst.ID == "" {
			inst.ID = DeriveID(inst.IP, inst.Port, inst.Label)
		}
		list = append(list, inst)
		result = inst
	}
	return result, r.save(list)
}

// ErrNoInstance is returned when a lookup matches nothing.
var ErrNoInstance = errors.New("no matching instance")

// Find returns the instance with the given id, else the one with that label.
func (r *Registry) Find(ref string) (Instance, error) {
	list, err := r.Load()
	if err != nil {
		return Instance{}, err
	}
	for _, inst := range list {
		if inst.ID == ref {
			return inst, nil
		}
	}
	for _, inst := range list {
		if inst.Label == ref {
			return inst, nil
		}
	}
	return Instance{}, fmt.Errorf("%w: %q is neither an id nor a label", ErrNoInstance, ref)
}

// Resolve looks up by id when one is given, else by label.
func (r *Registry) Resolve(id, label string) (Instance, error) {
	if id == "" && label == "" {
		return Instance{}, errors.New("specify an instance by id or label")
	}
	list, err := r.Load()
	if err != nil {
		return Instance{}, err
	}
	for _, inst := range list {
		if (id != "" && inst.ID == id) || (id == "" && inst.Label == label) {
			return inst, nil
		}
	}
	if id != "" {
		return Instance{}, fmt.Errorf("%w: no instance with id %q", ErrNoInstance, id)
	}
	return Instance{}, fmt.Errorf("%w: no instance with label %q", ErrNoInstance, label)
}

func (r *Registry) RemoveByID(id string) (bool, error) {
	return r.remove(func(i Instance) bool { return i.ID == id })
}

func (r *Registry) RemoveByLabel(label string) (bool, error) {
	return r.remove(func(i Instance) bool { return i.Label == label })
}

func (r *Registry) RemoveByAddr(ip string, port uint16) (bool, error) {
	return r.remove(func(i Instance) bool { return i.IP == ip && i.Port == port })
}

func (r *Registry) remove(match func(Instance) bool) (bool, error) {
	list, err := r.Load()
	if err != nil {
		return false, err
	}
	kept := list[:0]
	for _, inst := range list {
		if !match(inst) {
			kept = append(kept, inst)
		}
	}
	if len(kept) == len(list) {
		return false, nil
	}
	return true, r.save(kept)
}

func (r *Registry) save(list []Instance) error {
	if list == nil {
		list = []Instance{}
	}
	content, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal instances: %w", err)
	}
	if err := fsutil.WriteFileAtomic(r.Path, content, 0o600); err != nil {
		return fmt.Errorf("failed to write instances: %w", err)
	}
	return nil
}
