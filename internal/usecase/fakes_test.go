package usecase

import (
	"context"
	"io"
	"time"

	"docchat-agent/internal/domain"
	"docchat-agent/internal/integrations/storage"
)

// fakeStatusStore records status merges in order and keeps a small
// in-memory registry, mirroring the repository's idempotence.
type mergeRecord struct {
	fileName string
	upd      domain.StatusUpdate
}

type fakeStatusStore struct {
	merges   []mergeRecord
	mergeErr error

	statuses map[string]*domain.ProcessingStatus
	getErr   error
	deleted  []string

	registries  map[string][]string
	registryErr error
	appendErr   error
	removed     []string
}

func newFakeStatusStore() *fakeStatusStore {
	return &fakeStatusStore{
		statuses:   map[string]*domain.ProcessingStatus{},
		registries: map[string][]string{},
	}
}

func statusKey(userID, fileName string) string { return userID + "|" + fileName }

func (f *fakeStatusStore) MergeStatus(_ context.Context, _, fileName string, upd domain.StatusUpdate) error {
	if f.mergeErr != nil {
		return f.mergeErr
	}
	f.merges = append(f.merges, mergeRecord{fileName: fileName, upd: upd})
	return nil
}

func (f *fakeStatusStore) GetStatus(_ context.Context, userID, fileName string) (*domain.ProcessingStatus, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.statuses[statusKey(userID, fileName)], nil
}

func (f *fakeStatusStore) DeleteStatus(_ context.Context, userID, fileName string) error {
	f.deleted = append(f.deleted, statusKey(userID, fileName))
	delete(f.statuses, statusKey(userID, fileName))
	return nil
}

func (f *fakeStatusStore) GetVectorStoreIDs(_ context.Context, userID string) ([]string, error) {
	if f.registryErr != nil {
		return nil, f.registryErr
	}
	return f.registries[userID], nil
}

func (f *fakeStatusStore) AppendVectorStoreID(_ context.Context, userID, vectorStoreID string) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	for _, id := range f.registries[userID] {
		if id == vectorStoreID {
			return nil
		}
	}
	f.registries[userID] = append(f.registries[userID], vectorStoreID)
	return nil
}

func (f *fakeStatusStore) RemoveVectorStoreID(_ context.Context, userID, vectorStoreID string) error {
	kept := f.registries[userID][:0:0]
	for _, id := range f.registries[userID] {
		if id != vectorStoreID {
			kept = append(kept, id)
		}
	}
	f.registries[userID] = kept
	f.removed = append(f.removed, vectorStoreID)
	return nil
}

// fakeIndex stands in for the external indexing service.
type fakeIndex struct {
	uploadID      string
	uploadErr     error
	uploadedNames []string
	uploadedData  []byte

	storeID       string
	createErr     error
	createdStores int

	attachErr error
	attached  [][2]string

	// statusQueue feeds RetrieveFileStatus one result per call; once
	// drained the last entry repeats.
	statusQueue []indexStatus
	statusCalls int
	onStatus    func()

	deletedFiles   []string
	deleteFileErr  error
	detached       [][2]string
	detachErr      error
	deletedStores  []string
	deleteStoreErr error
}

type indexStatus struct {
	status    string
	lastError string
	err       error
}

func (f *fakeIndex) UploadFile(_ context.Context, fileName string, content io.Reader) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.uploadedNames = append(f.uploadedNames, fileName)
	data, err := io.ReadAll(content)
	if err != nil {
		return "", err
	}
	f.uploadedData = data
	return f.uploadID, nil
}

func (f *fakeIndex) CreateVectorStore(_ context.Context, _ string) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.createdStores++
	return f.storeID, nil
}

func (f *fakeIndex) AttachFile(_ context.Context, vectorStoreID, fileID string) error {
	if f.attachErr != nil {
		return f.attachErr
	}
	f.attached = append(f.attached, [2]string{vectorStoreID, fileID})
	return nil
}

func (f *fakeIndex) RetrieveFileStatus(_ context.Context, _, _ string) (string, string, error) {
	if f.onStatus != nil {
		f.onStatus()
	}
	i := f.statusCalls
	f.statusCalls++
	if len(f.statusQueue) == 0 {
		return "in_progress", "", nil
	}
	if i >= len(f.statusQueue) {
		i = len(f.statusQueue) - 1
	}
	st := f.statusQueue[i]
	return st.status, st.lastError, st.err
}

func (f *fakeIndex) DeleteFile(_ context.Context, fileID string) error {
	if f.deleteFileErr != nil {
		return f.deleteFileErr
	}
	f.deletedFiles = append(f.deletedFiles, fileID)
	return nil
}

func (f *fakeIndex) DetachFile(_ context.Context, vectorStoreID, fileID string) error {
	if f.detachErr != nil {
		return f.detachErr
	}
	f.detached = append(f.detached, [2]string{vectorStoreID, fileID})
	return nil
}

func (f *fakeIndex) DeleteVectorStore(_ context.Context, vectorStoreID string) error {
	if f.deleteStoreErr != nil {
		return f.deleteStoreErr
	}
	f.deletedStores = append(f.deletedStores, vectorStoreID)
	return nil
}

// fakeStorage serves one canned object.
type fakeStorage struct {
	object    *storage.Object
	err       error
	downloads [][2]string
}

func (f *fakeStorage) Download(_ context.Context, bucket, key string) (*storage.Object, error) {
	f.downloads = append(f.downloads, [2]string{bucket, key})
	if f.err != nil {
		return nil, f.err
	}
	return f.object, nil
}

// fakeSessions is an in-memory SessionStorer.
type fakeSessions struct {
	sessions map[string]*domain.Session

	getErr     error
	putErr     error
	touchErr   error
	setNameErr error
	listErr    error
	countErr   error
	deleteErr  error

	turnCounts map[string]int
	touched    []string
	named      map[string]string
	cascaded   []string
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{
		sessions:   map[string]*domain.Session{},
		turnCounts: map[string]int{},
		named:      map[string]string{},
	}
}

func (f *fakeSessions) GetSession(_ context.Context, sessionID string) (*domain.Session, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.sessions[sessionID], nil
}

func (f *fakeSessions) PutSession(_ context.Context, sess domain.Session) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.sessions[sess.SessionID] = &sess
	return nil
}

func (f *fakeSessions) TouchSession(_ context.Context, sessionID string, at time.Time) error {
	if f.touchErr != nil {
		return f.touchErr
	}
	f.touched = append(f.touched, sessionID)
	if sess := f.sessions[sessionID]; sess != nil {
		sess.UpdatedAt = at
	}
	return nil
}

func (f *fakeSessions) SetSessionName(_ context.Context, sessionID, name string, at time.Time) error {
	if f.setNameErr != nil {
		return f.setNameErr
	}
	f.named[sessionID] = name
	if sess := f.sessions[sessionID]; sess != nil {
		sess.Name = name
		sess.UpdatedAt = at
	}
	return nil
}

func (f *fakeSessions) ListSessionsByUser(_ context.Context, userID string) ([]domain.Session, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []domain.Session
	for _, sess := range f.sessions {
		if sess.UserID == userID {
			out = append(out, *sess)
		}
	}
	return out, nil
}

func (f *fakeSessions) CountTurns(_ context.Context, sessionID string) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.turnCounts[sessionID], nil
}

func (f *fakeSessions) DeleteSessionCascade(_ context.Context, sessionID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.cascaded = append(f.cascaded, sessionID)
	delete(f.sessions, sessionID)
	return nil
}

// fakeAgent answers with a canned response and records what it was
// handed.
type fakeAgent struct {
	answer  string
	runErr  error
	prompts []string
	stores  [][]string
	memory  domain.ConversationMemory

	summary      string
	summarizeErr error
	summarized   []string
}

func (f *fakeAgent) Run(_ context.Context, memory domain.ConversationMemory, prompt string, vectorStoreIDs []string) (string, error) {
	f.memory = memory
	f.prompts = append(f.prompts, prompt)
	f.stores = append(f.stores, vectorStoreIDs)
	if f.runErr != nil {
		return "", f.runErr
	}
	return f.answer, nil
}

func (f *fakeAgent) Summarize(_ context.Context, prompt string) (string, error) {
	f.summarized = append(f.summarized, prompt)
	if f.summarizeErr != nil {
		return "", f.summarizeErr
	}
	return f.summary, nil
}

// fakeMemory is a trivial in-process conversation memory.
type fakeMemory struct {
	items []domain.ChatMessage
}

func (f *fakeMemory) GetItems(_ context.Context, limit int) ([]domain.ChatMessage, error) {
	if limit > 0 && limit < len(f.items) {
		return f.items[:limit], nil
	}
	return f.items, nil
}

func (f *fakeMemory) AddItems(_ context.Context, items []domain.ChatMessage) error {
	f.items = append(f.items, items...)
	return nil
}

func (f *fakeMemory) PopItem(_ context.Context) (*domain.ChatMessage, error) {
	if len(f.items) == 0 {
		return nil, nil
	}
	last := f.items[len(f.items)-1]
	f.items = f.items[:len(f.items)-1]
	return &last, nil
}

func (f *fakeMemory) Clear(_ context.Context) error {
	f.items = nil
	return nil
}
