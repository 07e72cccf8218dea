package geo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func fakePostcodeServer(t *testing.T, coords map[string][2]float64) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/postcodes/", func(w http.ResponseWriter, r *http.Request) {
		postcode := r.URL.Path[len("/postcodes/"):]
		c, ok := coords[postcode]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"status":404,"error":"Postcode not found"}`)
			return
		}
		fmt.Fprintf(w, `{"status":200,"result":{"latitude":%f,"longitude":%f}}`, c[0], c[1])
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestDistance(t *testing.T) {
	// Leeds city centre to Manchester city centre, roughly 36 straight-line miles.
	srv := fakePostcodeServer(t, map[string][2]float64{
		"LS1 4AP": {53.7965, -1.5478},
		"M1 1AE":  {53.4794, -2.2453},
	})
	c := NewClient(srv.URL)

	miles, err := c.Distance(context.Background(), "LS1 4AP", "M1 1AE")
	if err != nil {
		t.Fatalf("Distance: %v", err)
	}
	got, _ := miles.Float64()
	// Straight line ~36 miles, road factor 1.3 -> ~47.
	if math.Abs(got-47) > 2 {
		t.Errorf("distance = %.1f miles, want ~47", got)
	}
}

func TestDistanceSamePostcode(t *testing.T) {
	srv := fakePostcodeServer(t, map[string][2]float64{
		"LS1 4AP": {53.7965, -1.5478},
	})
	c := NewClient(srv.URL)

	miles, err := c.Distance(context.Background(), "LS1 4AP", "LS1 4AP")
	if err != nil {
		t.Fatalf("Distance: %v", err)
	}
	if !miles.IsZero() {
		t.Errorf("distance = %v, want 0", miles)
	}
}

func TestDistanceUnknownPostcode(t *testing.T) {
	srv := fakePostcodeServer(t, map[string][2]float64{
		"LS1 4AP": {53.7965, -1.5478},
	})
	c := NewClient(srv.URL)

	_, err := c.Distance(context.Background(), "LS1 4AP", "ZZ99 9ZZ")
	if !errors.Is(err, ErrPostcodeNotFound) {
		t.Errorf("err = %v, want ErrPostcodeNotFound", err)
	}
}

func TestDistanceServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL)

	if _, err := c.Distance(context.Background(), "LS1 4AP", "M1 1AE"); err == nil {
		t.Error("expected error on 500 response")
	}
}
