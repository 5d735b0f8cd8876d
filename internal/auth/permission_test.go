package auth

import (
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

var _ = ginkgo.Describe("ParsePermission", func() {
	ginkgo.It("parses an exact resource.action key", func() {
		p, err := ParsePermission("documents.view")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(p.Resource).To(gomega.Equal("documents"))
		gomega.Expect(p.Action).To(gomega.Equal("view"))
		gomega.Expect(p.Wildcard).To(gomega.BeFalse())
		gomega.Expect(p.Global).To(gomega.BeFalse())
	})

	ginkgo.It("parses a resource wildcard", func() {
		p, err := ParsePermission("documents.*")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(p.Resource).To(gomega.Equal("documents"))
		gomega.Expect(p.Wildcard).To(gomega.BeTrue())
	})

	ginkgo.It("parses the global wildcard", func() {
		p, err := ParsePermission("*")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(p.Global).To(gomega.BeTrue())
	})

	ginkgo.It("rejects malformed keys", func() {
		for _, key := range []string{"", "documents", "documents.", ".view"} {
			_, err := ParsePermission(key)
			gomega.Expect(err).To(gomega.HaveOccurred(), "key %q should not parse", key)
		}
	})
})

var _ = ginkgo.Describe("PermissionSet", func() {
	ginkgo.Context("with exact keys only", func() {
		set := NewPermissionSet([]string{"documents.view", "documents.create"})

		ginkgo.It("allows exactly the granted keys", func() {
			gomega.Expect(set.Allows("documents.view")).To(gomega.BeTrue())
			gomega.Expect(set.Allows("documents.create")).To(gomega.BeTrue())
		})

		ginkgo.It("denies everything else", func() {
			gomega.Expect(set.Allows("documents.delete")).To(gomega.BeFalse())
			gomega.Expect(set.Allows("documents.view_all")).To(gomega.BeFalse())
			gomega.Expect(set.Allows("users.view")).To(gomega.BeFalse())
		})
	})

	ginkgo.Context("with a resource wildcard", func() {
		set := NewPermissionSet([]string{"documents.*"})

		ginkgo.It("allows every action on that resource", func() {
			gomega.Expect(set.Allows("documents.view")).To(gomega.BeTrue())
			gomega.Expect(set.Allows("documents.delete_all")).To(gomega.BeTrue())
			gomega.Expect(set.Allows("documents.anything")).To(gomega.BeTrue())
		})

		ginkgo.It("does not leak into other resources", func() {
			gomega.Expect(set.Allows("users.view")).To(gomega.BeFalse())
			gomega.Expect(set.Allows("audit.view")).To(gomega.BeFalse())
		})
	})

	ginkgo.Context("with the global wildcard", func() {
		set := NewPermissionSet([]string{"*"})

		ginkgo.It("allows everything", func() {
			gomega.Expect(set.Allows("documents.delete_all")).To(gomega.BeTrue())
			gomega.Expect(set.Allows("roles.update")).To(gomega.BeTrue())
			gomega.Expect(set.Allows("audit.view")).To(gomega.BeTrue())
		})
	})

	ginkgo.Context("with malformed keys in the input", func() {
		ginkgo.It("drops them and keeps the valid ones", func() {
			set := NewPermissionSet([]string{"documents.view", "bogus", ""})
			gomega.Expect(set.Allows("documents.view")).To(gomega.BeTrue())
			gomega.Expect(set.Allows("bogus")).To(gomega.BeFalse())
		})
	})

	ginkgo.Context("when empty", func() {
		ginkgo.It("denies everything", func() {
			set := NewPermissionSet(nil)
			gomega.Expect(set.IsEmpty()).To(gomega.BeTrue())
			gomega.Expect(set.Allows("documents.view")).To(gomega.BeFalse())
		})
	})

	ginkgo.Describe("Keys", func() {
		ginkgo.It("returns the granted keys sorted", func() {
			set := NewPermissionSet([]string{"users.view", "documents.*", "*", "audit.view"})
			gomega.Expect(set.Keys()).To(gomega.Equal([]string{"*", "audit.view", "documents.*", "users.view"}))
		})
	})
})
