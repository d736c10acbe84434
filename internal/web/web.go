// Package web is the file drop: a minimal HTTP server for pushing app
// images onto the device storage over the network, for boards where
// pulling the SD card means opening the case. It serves an index of
// installed images and accepts uploads; the user rescans from the menu
// afterwards.
package web

import (
	"fmt"
	"html"
	"io"
	"io/ioutil"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"

	"github.com/m5lab/launcher/log2"
)

// FilenameHeader names the upload target file.
const FilenameHeader = "X-Filename"

type Server struct {
	Log    *log2.Log
	Alive  *alive.Alive
	Dir    string // upload directory, normally the apps dir
	Listen string
	// MaxBytes caps one upload; 0 means no cap.
	MaxBytes int64
	// OnUpload is called after a file landed, from the request goroutine.
	OnUpload func(name string)

	srv *http.Server
}

func (self *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", self.handleIndex)
	mux.HandleFunc("/upload", self.handleUpload)
	return mux
}

// Start binds the listener and serves until Alive stops.
func (self *Server) Start() error {
	ln, err := net.Listen("tcp", self.Listen)
	if err != nil {
		return errors.Annotatef(err, "web listen=%s", self.Listen)
	}
	if err = os.MkdirAll(self.Dir, 0755); err != nil {
		ln.Close()
		return errors.Annotate(err, "web upload dir")
	}
	self.srv = &http.Server{Handler: self.Handler()}

	if !self.Alive.Add(2) {
		ln.Close()
		return errors.Errorf("web start after stop")
	}
	go func() {
		defer self.Alive.Done()
		self.Log.Infof("web listening on %s dir=%s", ln.Addr(), self.Dir)
		if err := self.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			self.Log.Errorf("web serve err=%v", err)
		}
	}()
	go func() {
		defer self.Alive.Done()
		<-self.Alive.StopChan()
		_ = self.srv.Close()
	}()
	return nil
}

func (self *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	infos, err := ioutil.ReadDir(self.Dir)
	if err != nil {
		self.Log.Errorf("web index dir=%s err=%v", self.Dir, err)
		http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
		return
	}
	names := make([]os.FileInfo, 0, len(infos))
	for _, fi := range infos {
		if fi.Mode().IsRegular() && !strings.HasPrefix(fi.Name(), ".") {
			names = append(names, fi)
		}
	}
	sort.Slice(names, func(i, j int) bool { return names[i].Name() < names[j].Name() })

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, "<!doctype html><title>launcher</title><h1>apps</h1><ul>")
	for _, fi := range names {
		fmt.Fprintf(w, "<li>%s (%d bytes)</li>", html.EscapeString(fi.Name()), fi.Size())
	}
	fmt.Fprintf(w, "</ul><p>upload: curl -X POST --data-binary @app.bin -H '%s: app.bin' /upload</p>",
		FilenameHeader)
}

func (self *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	name := filepath.Base(r.Header.Get(FilenameHeader))
	if name == "" || name == "." || name == string(filepath.Separator) || strings.HasPrefix(name, ".") {
		http.Error(w, FilenameHeader+" header required", http.StatusBadRequest)
		return
	}

	body := io.Reader(r.Body)
	if self.MaxBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, self.MaxBytes)
	}

	// Hidden temp name keeps half-written uploads out of catalog scans.
	tmp, err := ioutil.TempFile(self.Dir, ".upload-*")
	if err != nil {
		self.Log.Errorf("web upload tmp err=%v", err)
		http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
		return
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		self.Log.Errorf("web upload name=%s err=%v", name, err)
		http.Error(w, "upload failed", http.StatusRequestEntityTooLarge)
		return
	}
	if err = os.Rename(tmp.Name(), filepath.Join(self.Dir, name)); err != nil {
		self.Log.Errorf("web upload rename name=%s err=%v", name, err)
		http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
		return
	}

	self.Log.Infof("web upload name=%s bytes=%d", name, n)
	if self.OnUpload != nil {
		self.OnUpload(name)
	}
	w.WriteHeader(http.StatusCreated)
	fmt.Fprintf(w, "stored %s %d bytes\n", name, n)
}
