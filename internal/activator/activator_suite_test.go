/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package activator

import (
	"context"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/marcus-qen/jitbroker/internal/activation"
	"github.com/marcus-qen/jitbroker/internal/entitlement"
	"github.com/marcus-qen/jitbroker/internal/jiterrors"
	"github.com/marcus-qen/jitbroker/internal/jitid"
)

func TestActivatorEndToEnd(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Activator End-to-End Suite")
}

var _ = Describe("self-activation end-to-end flow", func() {
	var (
		user    jitid.UserId
		project jitid.ProjectId
		repo    *fakeRepo
		mutator *fakeMutator
		act     *Activator
		start   time.Time
	)

	BeforeEach(func() {
		user = jitid.NewUserId("engineer@example.com")
		project = jitid.NewProjectId("project-1")
		set := entitlement.NewSet()
		set.AddAvailable(entitlement.Privilege{Role: role("roles/editor"), ActivationType: activation.Self()})
		repo = &fakeRepo{sets: map[string]*entitlement.Set{setKey(user, project): set}}
		mutator = &fakeMutator{}
		act = newTestActivator(repo, mutator)
		start = time.Date(2040, 1, 1, 0, 0, 0, 0, time.UTC)
	})

	It("provisions the requested role for the requested window", func() {
		req := act.CreateJitRequest(user, []jitid.ProjectRole{role("roles/editor")}, "incident INC-42", start, 10*time.Minute)

		result, err := act.Activate(context.Background(), user, req)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Window.Start).To(Equal(start))
		Expect(result.Window.End).To(Equal(start.Add(10 * time.Minute)))
		Expect(mutator.calls).To(HaveLen(1))
		Expect(mutator.calls[0].binding.Role).To(Equal("roles/editor"))
	})

	It("rejects activation of a role the user is not eligible for", func() {
		req := act.CreateJitRequest(user, []jitid.ProjectRole{role("roles/owner")}, "incident INC-42", start, 10*time.Minute)

		_, err := act.Activate(context.Background(), user, req)
		Expect(err).To(HaveOccurred())
		Expect(jiterrors.HasKind(err, jiterrors.AccessDenied)).To(BeTrue())
		Expect(mutator.calls).To(BeEmpty())
	})

	It("rejects activation when the mutator is unavailable for every role", func() {
		mutator.failRole = "roles/editor"
		req := act.CreateJitRequest(user, []jitid.ProjectRole{role("roles/editor")}, "incident INC-42", start, 10*time.Minute)

		_, err := act.Activate(context.Background(), user, req)
		Expect(err).To(HaveOccurred())
		Expect(jiterrors.HasKind(err, jiterrors.Aggregate)).To(BeTrue())
	})
})

var _ = Describe("multi-party-approval end-to-end flow", func() {
	var (
		requester jitid.UserId
		approver  jitid.UserId
		project   jitid.ProjectId
		repo      *fakeRepo
		mutator   *fakeMutator
		act       *Activator
		start     time.Time
		r         jitid.ProjectRole
	)

	BeforeEach(func() {
		requester = jitid.NewUserId("requester@example.com")
		approver = jitid.NewUserId("approver@example.com")
		project = jitid.NewProjectId("project-1")
		r = role("roles/editor")

		set := entitlement.NewSet()
		set.AddAvailable(entitlement.Privilege{Role: r, ActivationType: activation.Peer("")})
		repo = &fakeRepo{
			sets:    map[string]*entitlement.Set{setKey(requester, project): set},
			holders: map[string][]jitid.UserId{r.Id(): {approver}},
		}
		mutator = &fakeMutator{}
		act = newTestActivator(repo, mutator)
		start = time.Date(2040, 1, 1, 0, 0, 0, 0, time.UTC)
	})

	It("provisions the role once a distinct reviewer approves", func() {
		req := act.CreateMpaRequest(requester, []jitid.ProjectRole{r}, []jitid.UserId{approver}, activation.Peer(""), "incident INC-42", start, 10*time.Minute)

		result, err := act.Approve(context.Background(), approver, req)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Window.Start).To(Equal(start))
		Expect(mutator.calls).To(HaveLen(1))
		Expect(mutator.calls[0].binding.Description).To(ContainSubstring(approver.String()))
	})

	It("rejects self-approval of an MPA request", func() {
		req := act.CreateMpaRequest(requester, []jitid.ProjectRole{r}, []jitid.UserId{approver}, activation.Peer(""), "incident INC-42", start, 10*time.Minute)

		_, err := act.Approve(context.Background(), requester, req)
		Expect(err).To(HaveOccurred())
		Expect(jiterrors.HasKind(err, jiterrors.AccessDenied)).To(BeTrue())
	})

	It("rejects approval from someone who does not hold the reviewer privilege", func() {
		stranger := jitid.NewUserId("stranger@example.com")
		req := act.CreateMpaRequest(requester, []jitid.ProjectRole{r}, []jitid.UserId{approver}, activation.Peer(""), "incident INC-42", start, 10*time.Minute)

		_, err := act.Approve(context.Background(), stranger, req)
		Expect(err).To(HaveOccurred())
		Expect(jiterrors.HasKind(err, jiterrors.AccessDenied)).To(BeTrue())
	})
})
