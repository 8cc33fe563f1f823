package resource

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/intrinsic/engine/internal/core/ecs"
)

const (
	PostEffectKind = "PostEffect"
	// PostEffectExt is appended to the resource name for each saved file.
	PostEffectExt = ".post_effect.json"

	blendTargetName = "PostEffectBlendTarget"
	snapshotName    = "PostEffectSnapshot"
)

// PostEffectManager holds screen-space effect settings. Every exposed value
// is blendable, so areas of the world can fade between effect presets.
type PostEffectManager struct {
	*ecs.ResourceManager

	Scattering          *ecs.Column[float32]
	LocalLightIntensity *ecs.Column[float32]

	blendTarget ecs.Ref
	snapshot    ecs.Ref
}

func NewPostEffectManager(capacity int, log *zap.Logger) *PostEffectManager {
	m := &PostEffectManager{ResourceManager: ecs.NewResourceManager(PostEffectKind, capacity, log)}
	t := m.Table()
	m.Scattering = ecs.AddColumn(t, "volumetricLightingScattering", float32(0))
	m.Scattering.SetLerp(ecs.LerpFloat32)
	m.LocalLightIntensity = ecs.AddColumn(t, "volumetricLightingLocalLightIntensity", float32(0))
	m.LocalLightIntensity.SetLerp(ecs.LerpFloat32)

	ecs.Expose(m, m.Scattering, "Scattering", ecs.Category("VolumetricLighting"))
	ecs.Expose(m, m.LocalLightIntensity, "LocalLightIntensity", ecs.Category("VolumetricLighting"))
	return m
}

// Init creates the transient blend target. Call once after construction.
func (m *PostEffectManager) Init() error {
	ref, err := m.Create(blendTargetName)
	if err != nil {
		return fmt.Errorf("create post effect blend target: %w", err)
	}
	m.ResetToDefault(ref)
	m.SetTransient(ref, true)
	m.blendTarget = ref
	return nil
}

// BlendTarget is the instance the renderer reads each frame.
func (m *PostEffectManager) BlendTarget() ecs.Ref { return m.blendTarget }

// BlendPostEffect writes mix(left, right, factor) into the blend target.
func (m *PostEffectManager) BlendPostEffect(left, right ecs.Ref, factor float32) error {
	return m.Blend(m.blendTarget, left, right, factor)
}

// SnapshotBlendTarget copies the blend target into a transient instance so a
// new blend can start from what is currently shown. The instance is created
// on first use and overwritten by later snapshots.
func (m *PostEffectManager) SnapshotBlendTarget() (ecs.Ref, error) {
	if !m.Alive(m.snapshot) {
		ref, err := m.Create(snapshotName)
		if err != nil {
			return ecs.InvalidRef, fmt.Errorf("create post effect snapshot: %w", err)
		}
		m.ResetToDefault(ref)
		m.SetTransient(ref, true)
		m.snapshot = ref
	}
	if err := m.Blend(m.snapshot, m.blendTarget, m.blendTarget, 0); err != nil {
		return ecs.InvalidRef, err
	}
	return m.snapshot, nil
}

// CreatePostEffect creates and resets a preset.
func (m *PostEffectManager) CreatePostEffect(name string) (ecs.Ref, error) {
	ref, err := m.Create(name)
	if err != nil {
		return ecs.InvalidRef, err
	}
	m.ResetToDefault(ref)
	return ref, nil
}

// SaveToDir writes one .post_effect.json file per preset.
func (m *PostEffectManager) SaveToDir(dir string) (int, error) {
	return m.SaveToMultipleFiles(dir, PostEffectExt)
}

func (m *PostEffectManager) LoadFromDir(dir string) (int, error) {
	return m.LoadFromMultipleFiles(dir, PostEffectExt)
}
