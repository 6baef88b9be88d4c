package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dfryer1193/storefront/api"
)

// Session is a logged-in user. Every request it sends carries its own token,
// so several sessions can share one Client.
type Session struct {
	client    *Client
	token     string
	User      api.User
	ExpiresAt time.Time
}

// Image is a file to upload with a product
type Image struct {
	Filename string
	Data     io.Reader
}

// ProductForm holds the fields of a create or update. Nil fields are not sent.
type ProductForm struct {
	Name             *string
	ShortDescription *string
	Price            *float64
	Image            *Image
}

func (s *Session) Token() string {
	return s.token
}

func (s *Session) Me(ctx context.Context) (*api.User, error) {
	var u api.User
	if err := s.client.doJSON(ctx, http.MethodGet, "/api/auth/me", s.token, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Session) CreateProduct(ctx context.Context, form ProductForm) (*api.Product, error) {
	return s.sendProduct(ctx, http.MethodPost, "/api/products", form)
}

func (s *Session) UpdateProduct(ctx context.Context, id string, form ProductForm) (*api.Product, error) {
	return s.sendProduct(ctx, http.MethodPut, "/api/products/"+url.PathEscape(id), form)
}

func (s *Session) DeleteProduct(ctx context.Context, id string) error {
	return s.client.doJSON(ctx, http.MethodDelete, "/api/products/"+url.PathEscape(id), s.token, nil, nil)
}

func (s *Session) sendProduct(ctx context.Context, method, path string, form ProductForm) (*api.Product, error) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	if form.Name != nil {
		if err := mw.WriteField("name", *form.Name); err != nil {
			return nil, err
		}
	}
	if form.ShortDescription != nil {
		if err := mw.WriteField("shortDescription", *form.ShortDescription); err != nil {
			return nil, err
		}
	}
	if form.Price != nil {
		if err := mw.WriteField("price", strconv.FormatFloat(*form.Price, 'f', -1, 64)); err != nil {
			return nil, err
		}
	}
	if form.Image != nil {
		fw, err := mw.CreateFormFile("image", form.Image.Filename)
		if err != nil {
			return nil, err
		}
		if _, err := io.Copy(fw, form.Image.Data); err != nil {
			return nil, fmt.Errorf("failed to read image: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var p api.Product
	if err := s.client.do(ctx, method, path, s.token, mw.FormDataContentType(), body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
