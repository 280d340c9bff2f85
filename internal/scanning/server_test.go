package scanning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"

	"github.com/google/generative-ai-go/genai"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

// mockScanner is a mock implementation of Scanner
type mockScanner struct {
	doc         json.RawMessage
	scanErr     error
	contentType string
	calls       int
}

func (m *mockScanner) ScanDocument(ctx context.Context, imageData []byte, contentType string) (json.RawMessage, error) {
	m.calls++
	m.contentType = contentType
	if m.scanErr != nil {
		return nil, m.scanErr
	}
	return m.doc, nil
}

func (m *mockScanner) Close() error {
	return nil
}

func imageUpload(field, contentType string, data []byte) (*bytes.Buffer, string) {
	var b bytes.Buffer
	writer := multipart.NewWriter(&b)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="label.jpg"`)
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := writer.CreatePart(h)
	Expect(err).NotTo(HaveOccurred())
	_, err = part.Write(data)
	Expect(err).NotTo(HaveOccurred())
	Expect(writer.Close()).To(Succeed())
	return &b, writer.FormDataContentType()
}

var _ = Describe("Server", func() {
	var (
		scanner *mockScanner
		server  *Server
		rec     *httptest.ResponseRecorder
	)

	BeforeEach(func() {
		scanner = &mockScanner{doc: json.RawMessage(`{"type":"Vin","nom":"Château X"}`)}
		server = NewServer(scanner, 0)
		rec = httptest.NewRecorder()
	})

	analyze := func(field, contentType string) {
		body, ct := imageUpload(field, contentType, []byte("fake image data"))
		req := httptest.NewRequest("POST", "/analyze", body)
		req.Header.Set("Content-Type", ct)
		server.ServeHTTP(rec, req)
	}

	Describe("handleAnalyze", func() {
		When("the scanner extracts a document", func() {
			BeforeEach(func() {
				analyze("file", "image/jpeg")
			})

			It("should return status OK", func() {
				Expect(rec.Code).To(Equal(http.StatusOK))
			})

			It("should return the document", func() {
				Expect(rec.Body.Bytes()).To(MatchJSON(`{"type":"Vin","nom":"Château X"}`))
			})

			It("should pass the content type to the scanner", func() {
				Expect(scanner.contentType).To(Equal("image/jpeg"))
			})
		})

		When("the scanner fails", func() {
			BeforeEach(func() {
				scanner.scanErr = errors.New("quota exceeded")
				analyze("file", "image/png")
			})

			It("should still return status OK", func() {
				Expect(rec.Code).To(Equal(http.StatusOK))
			})

			It("should return an error document with details", func() {
				Expect(rec.Body.Bytes()).To(MatchJSON(`{"error":"Echec de l'analyse IA","details":"quota exceeded"}`))
			})
		})

		When("the upload is not an image", func() {
			BeforeEach(func() {
				analyze("file", "application/pdf")
			})

			It("should return status Bad Request", func() {
				Expect(rec.Code).To(Equal(http.StatusBadRequest))
			})

			It("should not call the scanner", func() {
				Expect(scanner.calls).To(BeZero())
			})
		})

		When("the upload uses the wrong field", func() {
			BeforeEach(func() {
				analyze("image", "image/png")
			})

			It("should return status Unprocessable Entity", func() {
				Expect(rec.Code).To(Equal(http.StatusUnprocessableEntity))
				Expect(scanner.calls).To(BeZero())
			})
		})

		When("the upload has no content type", func() {
			BeforeEach(func() {
				body, ct := imageUpload("file", "", []byte("\x89PNG\r\n\x1a\n0000"))
				req := httptest.NewRequest("POST", "/analyze", body)
				req.Header.Set("Content-Type", ct)
				server.ServeHTTP(rec, req)
			})

			It("should sniff it from the data", func() {
				Expect(rec.Code).To(Equal(http.StatusOK))
				Expect(scanner.contentType).To(Equal("image/png"))
			})
		})
	})

	Describe("handleHome", func() {
		It("should report status", func() {
			server.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring("status"))
		})
	})
})

var _ = Describe("Ollama", func() {
	var (
		ollamaServer *ghttp.Server
		ollama       *Ollama
		doc          []byte
		err          error
	)

	BeforeEach(func() {
		ollamaServer = ghttp.NewServer()
		ollama, err = NewOllama(ollamaServer.URL(), "llava")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		ollamaServer.Close()
	})

	JustBeforeEach(func() {
		doc, err = ollama.ScanDocument(context.Background(), []byte("img"), "image/png")
	})

	When("the model answers with a document", func() {
		BeforeEach(func() {
			ollamaServer.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("POST", "/api/chat"),
				ghttp.VerifyContentType("application/json"),
				func(w http.ResponseWriter, r *http.Request) {
					var req ollamaChatRequest
					Expect(json.NewDecoder(r.Body).Decode(&req)).To(Succeed())
					Expect(req.Model).To(Equal("llava"))
					Expect(req.Messages).To(HaveLen(2))
					Expect(req.Messages[1].Images).To(Equal([]string{"aW1n"}))
					Expect(req.Format).To(Equal("json"))
					Expect(req.Options.Temperature).To(BeZero())
				},
				ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
					Message: ollamaMessage{Role: "assistant", Content: "```json\n{\"type\":\"Facture\",\"vendeur\":\"Acme\"}\n```"},
					Done:    true,
				}),
			))
		})

		It("should return the document", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(doc).To(MatchJSON(`{"type":"Facture","vendeur":"Acme"}`))
		})
	})

	When("the API returns an error", func() {
		BeforeEach(func() {
			ollamaServer.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, "model not found"))
		})

		It("returns the error", func() {
			Expect(err).To(MatchError(ContainSubstring("status 500")))
		})
	})

	When("the model answers with prose", func() {
		BeforeEach(func() {
			ollamaServer.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
				Message: ollamaMessage{Role: "assistant", Content: "Je ne sais pas."},
				Done:    true,
			}))
		})

		It("returns the error", func() {
			Expect(err).To(MatchError(ContainSubstring("parsing document")))
		})
	})
})

var _ = Describe("NewGemini", func() {
	It("should require an API key", func() {
		_, err := NewGemini("", "")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("candidateText", func() {
	It("should join the text parts of the first candidate", func() {
		resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text(`{"type":`), genai.Text(`"Vin"}`)}},
		}}}

		text, err := candidateText(resp)
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(Equal(`{"type":"Vin"}`))
	})

	It("should fail without candidates", func() {
		_, err := candidateText(&genai.GenerateContentResponse{})
		Expect(err).To(MatchError(errNoCandidates))
	})

	It("should fail when no part is text", func() {
		resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.ImageData("png", []byte("x"))}},
		}}}

		_, err := candidateText(resp)
		Expect(err).To(MatchError(errNoCandidates))
	})
})

