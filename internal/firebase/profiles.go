package firebase

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	firestore "google.golang.org/api/firestore/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"presupuestos/internal/auth"
	"presupuestos/internal/core"
)

// ProfileStore mirrors identities into the users collection of the
// project's default Firestore database.
type ProfileStore struct {
	svc     *firestore.Service
	project string
}

var _ auth.ProfileStore = (*ProfileStore)(nil)

// NewProfileStore authenticates with the given service account JSON unless
// opts already carry credentials.
func NewProfileStore(ctx context.Context, projectID string, credentialsJSON []byte, opts ...option.ClientOption) (*ProfileStore, error) {
	if projectID == "" {
		return nil, errors.New("missing firebase project id")
	}
	if len(credentialsJSON) > 0 {
		opts = append([]option.ClientOption{
			option.WithCredentialsJSON(credentialsJSON),
			option.WithScopes(firestore.DatastoreScope),
		}, opts...)
	}
	svc, err := firestore.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create firestore service: %w", err)
	}
	return &ProfileStore{svc: svc, project: projectID}, nil
}

func (s *ProfileStore) documentName(uid string) string {
	return fmt.Sprintf("projects/%s/databases/(default)/documents/%s", s.project, core.ProfilePath(uid))
}

// Upsert patches only the fields it writes; an empty display name is left
// out of the mask so the stored one survives.
func (s *ProfileStore) Upsert(ctx context.Context, id core.Identity) error {
	if err := id.Validate(); err != nil {
		return err
	}
	fields := map[string]firestore.Value{
		"uid":   {StringValue: id.UID},
		"email": {StringValue: id.Email},
	}
	mask := []string{"uid", "email"}
	if id.DisplayName != "" {
		fields["displayName"] = firestore.Value{StringValue: id.DisplayName}
		mask = append(mask, "displayName")
	}

	_, err := s.svc.Projects.Databases.Documents.
		Patch(s.documentName(id.UID), &firestore.Document{Fields: fields}).
		UpdateMaskFieldPaths(mask...).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("patch profile %s: %w", id.UID, err)
	}
	return nil
}

func (s *ProfileStore) Get(ctx context.Context, uid string) (*core.Identity, error) {
	doc, err := s.svc.Projects.Databases.Documents.Get(s.documentName(uid)).Context(ctx).Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get profile %s: %w", uid, err)
	}
	return &core.Identity{
		UID:         doc.Fields["uid"].StringValue,
		Email:       doc.Fields["email"].StringValue,
		DisplayName: doc.Fields["displayName"].StringValue,
	}, nil
}
