package factory

import (
	"errors"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"github.com/mikey/mail-triage/internal/adapters/cache"
	"github.com/mikey/mail-triage/internal/adapters/notify"
	"github.com/mikey/mail-triage/internal/adapters/store"
	"github.com/mikey/mail-triage/internal/config"
	"github.com/mikey/mail-triage/internal/utils"
)

func newConfig(settings map[string]any) *config.Config {
	v := config.NewEmptyViper()
	for k, val := range settings {
		v.Set(k, val)
	}
	return config.NewFromViper(v)
}

func TestResources_CloseInReverseOrder(t *testing.T) {
	t.Parallel()

	r := NewResources()
	var order []int
	errFirst := errors.New("first")
	r.Add(func() error { order = append(order, 1); return errFirst })
	r.Add(func() error { order = append(order, 2); return nil })

	if err := r.Close(); !errors.Is(err, errFirst) {
		t.Errorf("Close() error = %v, want %v", err, errFirst)
	}
	if !reflect.DeepEqual(order, []int{2, 1}) {
		t.Errorf("close order = %v, want [2 1]", order)
	}
	if err := r.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestCacheFactory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		settings map[string]any
		wantNil  bool
		wantType any
		wantErr  bool
	}{
		{name: "disabled", settings: map[string]any{"cache.enabled": false}, wantNil: true},
		{name: "memory", settings: map[string]any{"cache.type": "memory"}, wantType: &cache.MemoryCache{}},
		{name: "sqlite", settings: map[string]any{"cache.type": "sqlite", "cache.sqlite_path": ":memory:"}, wantType: &cache.SQLCache{}},
		{name: "unknown", settings: map[string]any{"cache.type": "memcached"}, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := newConfig(tt.settings)
			resources := NewResources()
			defer resources.Close()

			f := NewCacheFactory(cfg, zap.NewNop(), NewRedisFactory(cfg, zap.NewNop(), resources), resources)
			got, err := f.CreateCacheRepository()
			if (err != nil) != tt.wantErr {
				t.Fatalf("CreateCacheRepository() error = %v, wantErr %t", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if tt.wantNil {
				if got != nil {
					t.Errorf("CreateCacheRepository() = %T, want nil", got)
				}
				return
			}
			if reflect.TypeOf(got) != reflect.TypeOf(tt.wantType) {
				t.Errorf("CreateCacheRepository() = %T, want %T", got, tt.wantType)
			}
		})
	}
}

func TestStoreFactory(t *testing.T) {
	t.Parallel()

	resources := NewResources()
	defer resources.Close()

	none, err := NewStoreFactory(newConfig(map[string]any{"store.type": "none"}), zap.NewNop(), resources).CreateResultRepository()
	if err != nil || none != nil {
		t.Errorf("none store = %T, %v; want nil, nil", none, err)
	}

	mem, err := NewStoreFactory(newConfig(nil), zap.NewNop(), resources).CreateResultRepository()
	if _, ok := mem.(*store.MemoryStore); err != nil || !ok {
		t.Errorf("default store = %T, %v; want *store.MemoryStore", mem, err)
	}

	sqlite, err := NewStoreFactory(newConfig(map[string]any{"store.type": "sqlite", "store.sqlite_path": ":memory:"}), zap.NewNop(), resources).CreateResultRepository()
	if _, ok := sqlite.(*store.SQLStore); err != nil || !ok {
		t.Errorf("sqlite store = %T, %v; want *store.SQLStore", sqlite, err)
	}
}

func TestNotifyFactory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		sinks    []string
		wantType any
		wantErr  bool
	}{
		{name: "none", sinks: []string{}},
		{name: "log", sinks: []string{"log"}, wantType: &notify.LogNotifier{}},
		{name: "fan out", sinks: []string{"log", "log"}, wantType: notify.Multi{}},
		{name: "unknown", sinks: []string{"kafka"}, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := newConfig(map[string]any{"notify.sinks": tt.sinks})
			f := NewNotifyFactory(cfg, zap.NewNop(), NewRedisFactory(cfg, zap.NewNop(), NewResources()))

			got, err := f.CreateNotifier()
			if (err != nil) != tt.wantErr {
				t.Fatalf("CreateNotifier() error = %v, wantErr %t", err, tt.wantErr)
			}
			if tt.wantType == nil {
				if got != nil {
					t.Errorf("CreateNotifier() = %T, want nil", got)
				}
				return
			}
			if reflect.TypeOf(got) != reflect.TypeOf(tt.wantType) {
				t.Errorf("CreateNotifier() = %T, want %T", got, tt.wantType)
			}
		})
	}
}

func TestLLMFactory_CreateRemote(t *testing.T) {
	t.Parallel()

	newFactory := func(settings map[string]any) *LLMFactory {
		return NewLLMFactory(newConfig(settings), zap.NewNop(), utils.NewTextProcessor(zap.NewNop()), NewResources())
	}

	local, err := newFactory(nil).CreateRemote()
	if err != nil {
		t.Fatalf("CreateRemote() local error = %v", err)
	}
	if local.Classifier != nil || local.Responder != nil {
		t.Errorf("CreateRemote() local = %+v, want empty", local)
	}

	remote, err := newFactory(map[string]any{
		"triage.strategy":       "remote",
		"triage.reply_strategy": "remote",
		"openai.api_key":        "test-key",
	}).CreateRemote()
	if err != nil {
		t.Fatalf("CreateRemote() remote error = %v", err)
	}
	if remote.Classifier == nil || remote.Responder == nil {
		t.Errorf("CreateRemote() remote = %+v, want both set", remote)
	}

	if _, err := newFactory(map[string]any{"triage.strategy": "remote"}).CreateRemote(); err == nil {
		t.Error("CreateRemote() without an API key error = nil")
	}

	if _, err := newFactory(map[string]any{"llm.provider": "watson"}).CreateLLMClient(); err == nil {
		t.Error("CreateLLMClient() with unknown provider error = nil")
	}
}

func TestFilterFactory(t *testing.T) {
	t.Parallel()

	f := NewFilterFactory(newConfig(nil), zap.NewNop(), nil)
	if _, err := f.CreateMessageFilter(); err != nil {
		t.Errorf("CreateMessageFilter() error = %v", err)
	}

	bad := NewFilterFactory(newConfig(map[string]any{"server.headers.label": ""}), zap.NewNop(), nil)
	if _, err := bad.CreateMessageFilter(); err == nil {
		t.Error("CreateMessageFilter() with empty label header error = nil")
	}
}
