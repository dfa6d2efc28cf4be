package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/rs/zerolog"

	"englearn/internal/ids"
	"englearn/internal/media/sniffer"
	"englearn/internal/media/svg"
	"englearn/internal/models"
	"englearn/internal/security"
)

// ObjectStore is the part of storage.ObjectStore avatars need.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Remove(ctx context.Context, key string) error
	PublicURL(key string) string
}

type AvatarUpload struct {
	File         io.Reader
	Size         int64
	DeclaredType string
}

type AvatarService struct {
	auth    *AuthService
	objects ObjectStore
	secret  string
	maxSize int64
	log     zerolog.Logger
}

func NewAvatarService(auth *AuthService, objects ObjectStore, secret string, maxSize int64, log zerolog.Logger) *AvatarService {
	return &AvatarService{
		auth:    auth,
		objects: objects,
		secret:  secret,
		maxSize: maxSize,
		log:     log,
	}
}

// Upload stores a new avatar and points the user's avatar_url at it.
func (s *AvatarService) Upload(ctx context.Context, user models.User, in AvatarUpload) (models.User, error) {
	if in.File == nil {
		return models.User{}, badRequest("Avatar file is required")
	}
	if in.Size > s.maxSize {
		return models.User{}, badRequest(fmt.Sprintf("Avatar must be at most %d bytes", s.maxSize))
	}

	// one extra byte tells us the declared size was a lie
	data, err := io.ReadAll(io.LimitReader(in.File, s.maxSize+1))
	if err != nil {
		return models.User{}, badRequest("Could not read avatar file")
	}
	if len(data) == 0 {
		return models.User{}, badRequest("Avatar file is empty")
	}
	if int64(len(data)) > s.maxSize {
		return models.User{}, badRequest(fmt.Sprintf("Avatar must be at most %d bytes", s.maxSize))
	}

	head := data
	if len(head) > sniffer.HeadSize {
		head = head[:sniffer.HeadSize]
	}
	kind, err := sniffer.DetectHead(head)
	if err != nil {
		return models.User{}, badRequest("Avatar must be a jpeg, png, gif, webp, avif or svg image")
	}
	if in.DeclaredType != "" && in.DeclaredType != "application/octet-stream" && in.DeclaredType != kind.MIME {
		return models.User{}, badRequest(fmt.Sprintf("Content type mismatch: declared %s, detected %s", in.DeclaredType, kind.MIME))
	}

	if kind.Type == sniffer.TypeSVG {
		data, err = svg.Sanitize(data)
		if err != nil {
			return models.User{}, badRequest("Avatar svg is not valid")
		}
	}

	key := path.Join("avatars", user.ID, ids.New()+"."+kind.Extension())
	if err := s.objects.Put(ctx, key, bytes.NewReader(data), int64(len(data)), kind.MIME); err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("store avatar")
		return models.User{}, fmt.Errorf("store avatar: %w", ErrInternal)
	}

	avatarURL := s.SignedURL(user.ID, key)
	var updated models.User
	err = s.auth.mutateUser(ctx, user.ID, func(u *models.User) error {
		u.AvatarURL = &avatarURL
		return nil
	}, &updated)
	if err != nil {
		if rmErr := s.objects.Remove(ctx, key); rmErr != nil {
			s.log.Warn().Err(rmErr).Str("key", key).Msg("remove orphaned avatar")
		}
		return models.User{}, err
	}

	s.log.Info().Str("user_id", user.ID).Str("key", key).Int("bytes", len(data)).Msg("avatar updated")
	return updated, nil
}

// SignedURL appends a sig query parameter binding the object to its owner.
func (s *AvatarService) SignedURL(userID, key string) string {
	sig := security.SignResource(s.secret, userID, key)
	return s.objects.PublicURL(key) + "?sig=" + url.QueryEscape(sig)
}

// VerifyURL checks a sig produced by SignedURL.
func (s *AvatarService) VerifyURL(userID, key, sig string) bool {
	return security.VerifyResource(s.secret, sig, userID, key)
}

// AuthorizeURL checks a signed avatar URL or request URI as forwarded by the
// proxy in front of the bucket. Everything before the last "avatars/"
// segment (host, bucket path) is ignored.
func (s *AvatarService) AuthorizeURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	i := strings.LastIndex(u.Path, "avatars/")
	if i < 0 || (i > 0 && u.Path[i-1] != '/') {
		return false
	}
	key := u.Path[i:]
	parts := strings.Split(key, "/")
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return false
	}
	sig := u.Query().Get("sig")
	if sig == "" {
		return false
	}
	return s.VerifyURL(parts[1], key, sig)
}
