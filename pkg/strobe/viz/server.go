package viz

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"
)

type ImageContainer struct {
	name string
	data []byte
}

// Producer renders a named image on demand. Session trace plotters are
// the only producers today.
type Producer interface {
	Name() string
	GetImage() *ImageContainer
	AddPlotOption(opt PlotOptions)
}

// Server exposes auto-refreshing plots over HTTP, grouped into buckets
// (one per decode session). Images only render for buckets somebody is
// actually viewing.
type Server struct {
	images          map[string]map[string]*ImageContainer
	mu              sync.RWMutex
	port            int
	srv             *http.Server
	producerBuckets map[string]map[string]Producer
	updateInterval  time.Duration
	lastViewed      map[string]time.Time
}

func NewServer(port int, updateInterval time.Duration) *Server {
	return &Server{
		images:          make(map[string]map[string]*ImageContainer),
		producerBuckets: make(map[string]map[string]Producer),
		port:            port,
		lastViewed:      make(map[string]time.Time),
		srv:             &http.Server{Addr: fmt.Sprintf(":%d", port)},
		updateInterval:  updateInterval,
	}
}

func (s *Server) Register(bucket string, p Producer) {
	s.mu.Lock()
	b, ok := s.producerBuckets[bucket]
	if !ok {
		b = make(map[string]Producer)
		s.producerBuckets[bucket] = b
	}
	b[p.Name()] = p
	s.mu.Unlock()
}

func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}

func (s *Server) renderLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.updateInterval):
			s.mu.RLock()
			buckets := s.producerBuckets
			s.mu.RUnlock()

			var wg sync.WaitGroup
			for bucketName, bucket := range buckets {
				s.mu.RLock()
				lastViewed := s.lastViewed[bucketName]
				s.mu.RUnlock()
				if time.Since(lastViewed) > time.Second {
					continue
				}

				for _, producer := range bucket {
					wg.Add(1)
					go func(bucket string, p Producer) {
						defer wg.Done()

						img := p.GetImage()
						if img == nil {
							return
						}

						s.mu.Lock()
						mb, ok := s.images[bucket]
						if !ok {
							mb = make(map[string]*ImageContainer)
							s.images[bucket] = mb
						}
						mb[img.name] = img
						s.mu.Unlock()
					}(bucketName, producer)
				}
			}
			wg.Wait()
		}
	}
}

func (s *Server) Run(ctx context.Context) error {

	go s.renderLoop(ctx)

	handler := httprouter.New()
	handler.GET("/", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var key string
		s.mu.RLock()
		for name := range s.producerBuckets {
			key = name
			break
		}
		defer s.mu.RUnlock()

		w.Header().Set("Location", url.PathEscape(fmt.Sprintf("/view/%s", key)))
		w.WriteHeader(http.StatusFound)
	})

	handler.GET("/view/:bucket", func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		bucket := params.ByName("bucket")

		s.mu.RLock()
		itemsForBucket, ok := s.producerBuckets[bucket]
		s.mu.RUnlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		s.mu.Lock()
		s.lastViewed[bucket] = time.Now()
		s.mu.Unlock()

		time.Sleep(s.updateInterval)

		s.mu.RLock()
		defer s.mu.RUnlock()

		w.Header().Add("Content-Type", "text/html")
		w.Write([]byte(`<html><head><title>Strobe Viz</title>`))
		w.Write([]byte(fmt.Sprintf(`
		<script type="text/javascript">
			function changeBucket() {
				window.location.href = '/view/' + document.getElementById('bucketSelector').value;
			}
			window.onload = function() {
				setInterval(function() {
					var imgs = document.getElementsByClassName('trace');
					for (var i = 0; i < imgs.length; i++) {
						imgs[i].src = imgs[i].src.split("?")[0] + "?" + new Date().getTime();
					}
				}, %d);
			}
		</script></head>`, s.updateInterval.Milliseconds())))
		w.Write([]byte(`<body style='background-color: black'>`))

		keys := make([]string, 0, len(s.producerBuckets))
		for key := range s.producerBuckets {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		w.Write([]byte(`<select id="bucketSelector" onchange="changeBucket()">`))
		for _, bucketName := range keys {
			selected := ""
			if bucketName == bucket {
				selected = " selected"
			}
			w.Write([]byte(fmt.Sprintf(`<option value="%s"%s>%s</option>`, bucketName, selected, bucketName)))
		}
		w.Write([]byte(`</select>`))

		keys = make([]string, 0, len(itemsForBucket))
		for key := range itemsForBucket {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		w.Write([]byte(`<div style="display: flex; flex-direction: row; flex-wrap: wrap">`))
		for _, key := range keys {
			w.Write([]byte(fmt.Sprintf(`<div><img class="trace" src="/img/%s/%s?%d" /></div>`,
				bucket, key, time.Now().UnixMicro())))
		}
		w.Write([]byte(`</div>`))

		w.Write([]byte(`</body></html>`))
	})

	handler.GET("/img/:bucket/:img", func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		bucketName := params.ByName("bucket")

		s.mu.Lock()
		s.lastViewed[bucketName] = time.Now()
		s.mu.Unlock()

		imgName := params.ByName("img")

		s.mu.RLock()
		var img *ImageContainer
		bucket, ok := s.images[bucketName]
		if ok {
			img, ok = bucket[imgName]
		}
		s.mu.RUnlock()

		if !ok || img == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		w.Header().Add("Content-Type", "image/png")
		w.Write(img.data)
	})

	s.srv.Handler = handler

	err := s.srv.ListenAndServe()
	switch {
	case err == http.ErrServerClosed:
		return nil
	default:
		return err
	}
}
