// Package profilesvc manages the application profiles of confirmed accounts.
package profilesvc

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/mkrupp/eventhub/internal/domain"
	context_ "github.com/mkrupp/eventhub/internal/infra/context"
	"github.com/mkrupp/eventhub/internal/infra/logging"
	"github.com/mkrupp/eventhub/internal/repo/profile"
	"github.com/mkrupp/eventhub/internal/svc/imagesvc"
	"github.com/mkrupp/eventhub/internal/util/slug"
)

// ProfileService reads and edits profiles. Every mutation acts on the profile
// of the user in the context.
type ProfileService struct {
	profileRepo profile.Repository
	imageSvc    imagesvc.ImageService
	cfg         ProfileConfig
	log         logging.Logger

	// Now returns the current time. It is replaced in tests.
	Now func() time.Time
}

// NewProfileService creates a new ProfileService.
func NewProfileService(
	ctx context.Context,
	repoFactory profile.RepositoryFactory,
	imageSvc imagesvc.ImageService,
	cfg ProfileConfig,
) (*ProfileService, error) {
	profileRepo, err := repoFactory(ctx)
	if err != nil {
		return nil, fmt.Errorf("new profile repository: %w", err)
	}

	return &ProfileService{
		profileRepo: profileRepo,
		imageSvc:    imageSvc,
		cfg:         cfg,
		log:         logging.GetLogger("svc.profilesvc.profile_service"),
		Now:         time.Now,
	}, nil
}

// Create inserts the profile row of the signed-in user. The row is keyed by
// the user's account ID; any ID in p is ignored.
func (profileSvc *ProfileService) Create(ctx context.Context, p domain.Profile) (_ domain.Profile, err error) {
	log := profileSvc.log.With(logging.Group("profile", "name", p.Name, "kind", p.Kind))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "profile create failed", "error", err)
		} else {
			log.InfoContext(ctx, "profile created")
		}
	}()

	userID, err := currentUser(ctx)
	if err != nil {
		return domain.Profile{}, err
	}

	if err := p.Validate(profileSvc.Now()); err != nil {
		return domain.Profile{}, err
	}

	p.ID = userID
	p.Name = strings.TrimSpace(p.Name)
	p.Deleted = false
	p.CreatedAt = profileSvc.Now().UTC().Truncate(time.Second)

	if err := profileSvc.profileRepo.CreateProfile(ctx, p); err != nil {
		return domain.Profile{}, fmt.Errorf("create profile: %w", err)
	}

	return p, nil
}

// Get returns the profile of the signed-in user.
func (profileSvc *ProfileService) Get(ctx context.Context) (domain.Profile, error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return domain.Profile{}, err
	}

	p, err := profileSvc.profileRepo.GetProfile(ctx, userID)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("get profile: %w", err)
	}

	return p, nil
}

// GetByName returns the profile using the display name encoded in segment,
// as produced for profile page URLs.
func (profileSvc *ProfileService) GetByName(ctx context.Context, segment string) (domain.Profile, error) {
	p, err := profileSvc.profileRepo.GetProfileByName(ctx, slug.Read(segment))
	if err != nil {
		return domain.Profile{}, fmt.Errorf("get profile by name: %w", err)
	}

	return p, nil
}

// Lookup returns the profile of an account, used to show creators and
// registrants next to events.
func (profileSvc *ProfileService) Lookup(ctx context.Context, id string) (domain.Profile, error) {
	p, err := profileSvc.profileRepo.GetProfile(ctx, id)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("lookup profile: %w", err)
	}

	return p, nil
}

// NameAvailable reports whether no profile uses the display name. Names are
// compared case-insensitively with whitespace runs collapsed.
func (profileSvc *ProfileService) NameAvailable(ctx context.Context, name string) (domain.NameAvailability, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.NameAvailability{}, fmt.Errorf("%w: name is required", domain.ErrInvalidProfile)
	}

	available, err := profileSvc.profileRepo.NameAvailable(ctx, name)
	if err != nil {
		return domain.NameAvailability{}, fmt.Errorf("name available: %w", err)
	}

	return domain.NameAvailability{Name: name, Available: available}, nil
}

// Update changes a single field of the signed-in user's profile.
func (profileSvc *ProfileService) Update(ctx context.Context, update domain.ProfileUpdate) (_ domain.Profile, err error) {
	log := profileSvc.log.With(logging.Group("profile", "field", update.Field))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "profile update failed", "error", err)
		} else {
			log.DebugContext(ctx, "profile updated")
		}
	}()

	p, err := profileSvc.Get(ctx)
	if err != nil {
		return domain.Profile{}, err
	}

	if err := update.Field.Apply(&p, update.Value, profileSvc.Now()); err != nil {
		return domain.Profile{}, fmt.Errorf("apply %s: %w", update.Field, err)
	}

	if err := profileSvc.profileRepo.UpdateProfile(ctx, p); err != nil {
		return domain.Profile{}, fmt.Errorf("update profile: %w", err)
	}

	return p, nil
}

// SetImage stores data as the signed-in user's profile image and points the
// profile at it. The object is kept at private/<name>-<unix time>.<ext> of the
// profile image bucket.
func (profileSvc *ProfileService) SetImage(
	ctx context.Context,
	filename string,
	data []byte,
) (_ domain.Profile, err error) {
	log := profileSvc.log.With(logging.Group("profile", "filename", filename, "size", len(data)))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "profile image upload failed", "error", err)
		} else {
			log.DebugContext(ctx, "profile image uploaded")
		}
	}()

	p, err := profileSvc.Get(ctx)
	if err != nil {
		return domain.Profile{}, err
	}

	objectPath := ImagePath(p.Name, filename, profileSvc.Now())

	image := domain.NewMedia(data, domain.MediaMeta{ //nolint:exhaustruct
		Bucket: domain.BucketProfileImages,
		Path:   objectPath,
		Owner:  p.ID,
	})

	if err := profileSvc.imageSvc.Store(ctx, image, true); err != nil {
		return domain.Profile{}, fmt.Errorf("store image: %w", err)
	}

	url := imagesvc.PublicURL(profileSvc.cfg.PublicBaseURL, domain.BucketProfileImages, objectPath)
	p.ImageURL = &url

	if err := profileSvc.profileRepo.UpdateProfile(ctx, p); err != nil {
		return domain.Profile{}, fmt.Errorf("update profile: %w", err)
	}

	return p, nil
}

// Delete soft-deletes the signed-in user's profile, releasing its name.
func (profileSvc *ProfileService) Delete(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			profileSvc.log.ErrorContext(ctx, "profile delete failed", "error", err)
		} else {
			profileSvc.log.InfoContext(ctx, "profile deleted")
		}
	}()

	userID, err := currentUser(ctx)
	if err != nil {
		return err
	}

	if err := profileSvc.profileRepo.DeleteProfile(ctx, userID); err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}

	return nil
}

// Close releases the profile repository.
func (profileSvc *ProfileService) Close() error {
	if err := profileSvc.profileRepo.Close(); err != nil {
		return fmt.Errorf("close profile repository: %w", err)
	}

	return nil
}

// ImagePath returns the object path of a profile image uploaded as filename
// at time now.
func ImagePath(name, filename string, now time.Time) string {
	ext := strings.ToLower(path.Ext(filename))

	return fmt.Sprintf("private/%s-%d%s", slug.Make(name), now.Unix(), ext)
}

func currentUser(ctx context.Context) (string, error) {
	userID, ok := context_.UserIDFromContext(ctx)
	if !ok {
		return "", errors.Join(domain.ErrUnauthorized, domain.ErrNoSession)
	}

	return userID, nil
}
