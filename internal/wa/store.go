package wa

import (
	"context"
	"fmt"

	"gowa-broadcast/internal/session"

	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
)

// DeviceStore persists pairing credentials in the whatsmeow sql store.
type DeviceStore struct {
	container *sqlstore.Container
}

func NewDeviceStore(container *sqlstore.Container) *DeviceStore {
	return &DeviceStore{container: container}
}

// Load returns the paired device, or nil when nothing is paired yet.
func (s *DeviceStore) Load(ctx context.Context) (session.Credentials, error) {
	device, err := s.container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("get device: %w", err)
	}
	if device == nil || device.ID == nil {
		return nil, nil
	}
	return device, nil
}

func (s *DeviceStore) Save(ctx context.Context, creds session.Credentials) error {
	device, ok := creds.(*store.Device)
	if !ok || device == nil {
		return fmt.Errorf("unexpected credentials type %T", creds)
	}
	if device.ID == nil {
		return nil
	}
	return device.Save(ctx)
}

// Purge deletes every stored device.
func (s *DeviceStore) Purge(ctx context.Context) error {
	devices, err := s.container.GetAllDevices(ctx)
	if err != nil {
		return fmt.Errorf("list devices: %w", err)
	}
	for _, device := range devices {
		if err := s.container.DeleteDevice(ctx, device); err != nil {
			return fmt.Errorf("delete device %s: %w", device.ID, err)
		}
	}
	return nil
}
