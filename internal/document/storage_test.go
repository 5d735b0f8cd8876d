package document

import (
	"io"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("DiskStorage", func() {
	var storage *DiskStorage

	BeforeEach(func() {
		var err error
		storage, err = NewDiskStorage(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())
	})

	It("round-trips content per document and version", func() {
		path, size, err := storage.Save("doc-1", 1, strings.NewReader("version one"))
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal("doc-1/v1"))
		Expect(size).To(Equal(int64(len("version one"))))

		f, err := storage.Open("doc-1", 1)
		Expect(err).NotTo(HaveOccurred())
		defer f.Close()
		data, err := io.ReadAll(f)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("version one"))
	})

	It("keeps versions of the same document apart", func() {
		_, _, err := storage.Save("doc-1", 1, strings.NewReader("one"))
		Expect(err).NotTo(HaveOccurred())
		_, _, err = storage.Save("doc-1", 2, strings.NewReader("two"))
		Expect(err).NotTo(HaveOccurred())

		f, err := storage.Open("doc-1", 2)
		Expect(err).NotTo(HaveOccurred())
		defer f.Close()
		data, _ := io.ReadAll(f)
		Expect(string(data)).To(Equal("two"))
	})

	It("never overwrites an existing version path", func() {
		_, _, err := storage.Save("doc-1", 1, strings.NewReader("original"))
		Expect(err).NotTo(HaveOccurred())

		_, _, err = storage.Save("doc-1", 1, strings.NewReader("impostor"))
		Expect(err).To(HaveOccurred())

		f, err := storage.Open("doc-1", 1)
		Expect(err).NotTo(HaveOccurred())
		defer f.Close()
		data, _ := io.ReadAll(f)
		Expect(string(data)).To(Equal("original"))
	})

	It("fails to open a version that was never saved", func() {
		_, err := storage.Open("doc-1", 3)
		Expect(err).To(HaveOccurred())
	})

	It("removes a rolled-back version file", func() {
		_, _, err := storage.Save("doc-1", 1, strings.NewReader("x"))
		Expect(err).NotTo(HaveOccurred())

		Expect(storage.Remove("doc-1", 1)).To(Succeed())

		_, err = storage.Open("doc-1", 1)
		Expect(err).To(HaveOccurred())
	})
})
