package blobstore

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestStore(t *testing.T, handler http.HandlerFunc) (*Store, func()) {
	t.Helper()
	server := httptest.NewServer(handler)
	store := New(Config{
		Bucket:    "test-bucket",
		Endpoint:  server.URL,
		AccessKey: "access",
		SecretKey: "secret",
	})
	return store, server.Close
}

func TestPut_Success(t *testing.T) {
	store, closeFn := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s, want PUT", r.Method)
		}
		w.WriteHeader(http.StatusOK)
	})
	defer closeFn()

	err := store.Put(context.Background(), "labels/abc.jpg", []byte("image-bytes"), "image/jpeg")
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
}

func TestPut_Error(t *testing.T) {
	store, closeFn := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer closeFn()

	if err := store.Put(context.Background(), "labels/abc.jpg", []byte("data"), "image/jpeg"); err == nil {
		t.Fatal("expected error for a 500 response")
	}
}

func TestGet_Success(t *testing.T) {
	const body = "image-bytes"
	store, closeFn := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, body)
	})
	defer closeFn()

	data, err := store.Get(context.Background(), "labels/abc.jpg")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(data) != body {
		t.Errorf("Get() = %q, want %q", data, body)
	}
}

func TestGet_NotFound(t *testing.T) {
	store, closeFn := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	defer closeFn()

	if _, err := store.Get(context.Background(), "missing-key"); err == nil {
		t.Fatal("expected error for a missing object")
	}
}

func TestDelete_Success(t *testing.T) {
	store, closeFn := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s, want DELETE", r.Method)
		}
		w.WriteHeader(http.StatusNoContent)
	})
	defer closeFn()

	if err := store.Delete(context.Background(), "labels/abc.jpg"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
}
