// Package state holds the mutable application state shared by the HTTP
// router and the notification channel adapter. One State is constructed at
// process start and passed by reference; there is no ambient global.
package state

import (
	"encoding/json"
	"strings"
	"sync"
)

// ModuleInstance is one running instance of a host-app widget. A widget can
// be present multiple times with distinct identifiers.
type ModuleInstance struct {
	Identifier string         `json:"identifier"`
	Name       string         `json:"name"`
	URLPath    string         `json:"urlPath"`
	Index      int            `json:"index"`
	Hidden     bool           `json:"hidden"`
	Position   string         `json:"position,omitempty"`
	File       string         `json:"file,omitempty"`
	Config     map[string]any `json:"config,omitempty"`
}

// Slug derives the URL-safe path for a widget name: the vendor prefix and
// hyphens stripped, lower-cased.
func Slug(name string) string {
	s := strings.TrimPrefix(name, "MMM-")
	s = strings.ReplaceAll(s, "-", "")
	return strings.ToLower(s)
}

// ClassActions is one named group of per-module visibility instructions.
// Each field accepts a single module name or a list in the source config.
type ClassActions struct {
	Show   StringList `json:"show,omitempty"`
	Hide   StringList `json:"hide,omitempty"`
	Toggle StringList `json:"toggle,omitempty"`
}

// StringList unmarshals from either a JSON string or an array of strings.
type StringList []string

// UnmarshalJSON accepts "x" and ["x","y"].
func (l *StringList) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "\"") {
		var single string
		if err := json.Unmarshal(data, &single); err != nil {
			return err
		}
		*l = StringList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*l = StringList(many)
	return nil
}

// State is the application state shared across entry points.
type State struct {
	mu sync.RWMutex

	modules      []ModuleInstance
	brightness   int
	temp         int
	zoom         int
	userPresence bool
	translations map[string]string
	classes      map[string]ClassActions
	config       json.RawMessage
	initialized  bool
}

// New returns an empty State with neutral display settings.
func New() *State {
	return &State{
		brightness:   100,
		temp:         327,
		zoom:         100,
		translations: map[string]string{},
		classes:      map[string]ClassActions{},
	}
}

// SetModules replaces the known module instances and marks the state
// initialized.
func (s *State) SetModules(modules []ModuleInstance) {
	for i := range modules {
		if modules[i].URLPath == "" {
			modules[i].URLPath = Slug(modules[i].Name)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modules = modules
	s.initialized = true
}

// Modules returns a copy of the known module instances in configuration order.
func (s *State) Modules() []ModuleInstance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ModuleInstance, len(s.modules))
	copy(out, s.modules)
	return out
}

// Initialized reports whether module data has arrived from the host app.
func (s *State) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// Brightness returns the current brightness value.
func (s *State) Brightness() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.brightness
}

// SetBrightness stores the brightness value.
func (s *State) SetBrightness(v int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.brightness = v
}

// Temp returns the current color temperature value.
func (s *State) Temp() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.temp
}

// SetTemp stores the color temperature value.
func (s *State) SetTemp(v int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.temp = v
}

// Zoom returns the current zoom value.
func (s *State) Zoom() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.zoom
}

// SetZoom stores the zoom value.
func (s *State) SetZoom(v int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zoom = v
}

// UserPresence returns the current presence flag.
func (s *State) UserPresence() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userPresence
}

// SetUserPresence stores the presence flag.
func (s *State) SetUserPresence(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userPresence = v
}

// Translations returns the loaded translation strings.
func (s *State) Translations() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.translations))
	for k, v := range s.translations {
		out[k] = v
	}
	return out
}

// SetTranslations replaces the translation strings.
func (s *State) SetTranslations(t map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.translations = t
}

// Translate looks up a single translation key, returning the key itself when
// no translation is loaded.
func (s *State) Translate(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.translations[key]; ok {
		return v
	}
	return key
}

// Config returns the latest config document reported by the host app, or nil
// when none has arrived yet.
func (s *State) Config() json.RawMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.config == nil {
		return nil
	}
	out := make(json.RawMessage, len(s.config))
	copy(out, s.config)
	return out
}

// SetConfig stores the host app's reported config document.
func (s *State) SetConfig(cfg json.RawMessage) {
	snapshot := make(json.RawMessage, len(cfg))
	copy(snapshot, cfg)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = snapshot
}

// Classes returns the named visibility-class definitions.
func (s *State) Classes() map[string]ClassActions {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]ClassActions, len(s.classes))
	for k, v := range s.classes {
		out[k] = v
	}
	return out
}

// SetClasses replaces the named visibility-class definitions.
func (s *State) SetClasses(c map[string]ClassActions) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classes = c
}
