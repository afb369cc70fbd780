package emitter_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/batch-ledger/internal/domain"
	"github.com/feral-file/batch-ledger/internal/emitter"
	"github.com/feral-file/batch-ledger/internal/logger"
	"github.com/feral-file/batch-ledger/internal/messaging"
	"github.com/feral-file/batch-ledger/internal/mocks"
)

const (
	testContract = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	testCreator  = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	testChain    = domain.ChainLocalDevnet
)

func TestMain(m *testing.M) {
	// Initialize logger for tests
	err := logger.Initialize(logger.Config{
		Debug: false,
	})
	if err != nil {
		panic(err)
	}

	code := m.Run()
	os.Exit(code)
}

// testEmitterMocks contains all the mocks needed for testing the emitter
type testEmitterMocks struct {
	ctrl       *gomock.Controller
	subscriber *mocks.MockSubscriber
	publisher  *mocks.MockPublisher
	store      *mocks.MockStore
	clock      *mocks.MockClock
}

// setupTestEmitter creates all the mocks for testing
func setupTestEmitter(t *testing.T) *testEmitterMocks {
	ctrl := gomock.NewController(t)

	return &testEmitterMocks{
		ctrl:       ctrl,
		subscriber: mocks.NewMockSubscriber(ctrl),
		publisher:  mocks.NewMockPublisher(ctrl),
		store:      mocks.NewMockStore(ctrl),
		clock:      mocks.NewMockClock(ctrl),
	}
}

func (tm *testEmitterMocks) newEmitter(startBlock uint64, saveFreq uint64) emitter.Emitter {
	return emitter.NewEmitter(
		tm.subscriber,
		tm.publisher,
		tm.store,
		emitter.Config{
			ChainID:         testChain,
			StartBlock:      startBlock,
			CursorSaveFreq:  saveFreq,
			CursorSaveDelay: 5 * time.Second,
		},
		tm.clock,
	)
}

// tearDownTestEmitter cleans up the test mocks
func tearDownTestEmitter(mocks *testEmitterMocks) {
	mocks.ctrl.Finish()
}

func createdEvent(batchID uint64, block uint64) *domain.LedgerEvent {
	return &domain.LedgerEvent{
		Chain:           testChain,
		ContractAddress: testContract,
		EventType:       domain.EventTypeBatchCreated,
		BatchID:         batchID,
		ToAddress:       domain.StringPtr(testCreator),
		TxHash:          fmt.Sprintf("0xtx%d", batchID),
		BlockNumber:     block,
		Timestamp:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestEmitter_Run_FromConfiguredBlock(t *testing.T) {
	mocks := setupTestEmitter(t)
	defer tearDownTestEmitter(mocks)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	now := time.Now()
	mocks.clock.EXPECT().Now().Return(now).MinTimes(1)
	mocks.clock.EXPECT().Since(gomock.Any()).Return(time.Duration(0)).AnyTimes()

	mocks.store.
		EXPECT().
		GetBlockCursor(gomock.Any(), string(testChain)).
		Return(uint64(0), nil)

	event := createdEvent(1, 1001)
	mocks.subscriber.
		EXPECT().
		SubscribeEvents(gomock.Any(), uint64(1000), gomock.Any()).
		DoAndReturn(func(ctx context.Context, fromBlock uint64, handler messaging.EventHandler) error {
			assert.NoError(t, handler(event))

			// Cancel context to stop the emitter
			cancel()
			return nil
		})

	gomock.InOrder(
		mocks.publisher.EXPECT().PublishEvent(gomock.Any(), event).Return(nil),
		mocks.store.EXPECT().RecordLedgerEvent(gomock.Any(), event).Return(true, nil),
	)

	// events of block 1001 may be incomplete, the cursor covers 1000
	mocks.store.
		EXPECT().
		SetBlockCursor(gomock.Any(), string(testChain), uint64(1000)).
		Return(nil)

	err := mocks.newEmitter(1000, 1).Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestEmitter_Run_ResumesFromCursor(t *testing.T) {
	tests := []struct {
		name       string
		startBlock uint64
		cursor     uint64
		expected   uint64
	}{
		{name: "cursor ahead of deployment block", startBlock: 10, cursor: 500, expected: 501},
		{name: "no cursor", startBlock: 10, cursor: 0, expected: 10},
		{name: "cursor behind deployment block", startBlock: 800, cursor: 500, expected: 800},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mocks := setupTestEmitter(t)
			defer tearDownTestEmitter(mocks)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			mocks.clock.EXPECT().Now().Return(time.Now()).AnyTimes()

			mocks.store.
				EXPECT().
				GetBlockCursor(gomock.Any(), string(testChain)).
				Return(tt.cursor, nil)

			mocks.subscriber.
				EXPECT().
				SubscribeEvents(gomock.Any(), tt.expected, gomock.Any()).
				DoAndReturn(func(ctx context.Context, fromBlock uint64, handler messaging.EventHandler) error {
					cancel()
					return nil
				})

			err := mocks.newEmitter(tt.startBlock, 10).Run(ctx)
			assert.ErrorIs(t, err, context.Canceled)
		})
	}
}

func TestEmitter_Run_CursorSaveByBlockFrequency(t *testing.T) {
	mocks := setupTestEmitter(t)
	defer tearDownTestEmitter(mocks)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	now := time.Now()
	mocks.clock.EXPECT().Now().Return(now).AnyTimes()
	mocks.clock.EXPECT().Since(gomock.Any()).Return(time.Duration(0)).AnyTimes()

	mocks.store.
		EXPECT().
		GetBlockCursor(gomock.Any(), string(testChain)).
		Return(uint64(0), nil)

	mocks.publisher.EXPECT().PublishEvent(gomock.Any(), gomock.Any()).Return(nil).Times(5)
	mocks.store.EXPECT().RecordLedgerEvent(gomock.Any(), gomock.Any()).Return(true, nil).Times(5)

	// 1000 -> 999, 1003 skipped, 1006 -> 1005, second 1006 skipped, 1012 -> 1011
	gomock.InOrder(
		mocks.store.EXPECT().SetBlockCursor(gomock.Any(), string(testChain), uint64(999)).Return(nil),
		mocks.store.EXPECT().SetBlockCursor(gomock.Any(), string(testChain), uint64(1005)).Return(nil),
		mocks.store.EXPECT().SetBlockCursor(gomock.Any(), string(testChain), uint64(1011)).Return(nil),
	)

	mocks.subscriber.
		EXPECT().
		SubscribeEvents(gomock.Any(), uint64(1000), gomock.Any()).
		DoAndReturn(func(ctx context.Context, fromBlock uint64, handler messaging.EventHandler) error {
			for i, block := range []uint64{1000, 1003, 1006, 1006, 1012} {
				if err := handler(createdEvent(uint64(i+1), block)); err != nil {
					return err
				}
			}

			cancel()
			return nil
		})

	err := mocks.newEmitter(1000, 5).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEmitter_Run_CursorSaveByDelay(t *testing.T) {
	mocks := setupTestEmitter(t)
	defer tearDownTestEmitter(mocks)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mocks.clock.EXPECT().Now().Return(time.Now()).AnyTimes()
	mocks.clock.EXPECT().Since(gomock.Any()).Return(10 * time.Second).AnyTimes()

	mocks.store.
		EXPECT().
		GetBlockCursor(gomock.Any(), string(testChain)).
		Return(uint64(41), nil)

	mocks.publisher.EXPECT().PublishEvent(gomock.Any(), gomock.Any()).Return(nil).Times(2)
	mocks.store.EXPECT().RecordLedgerEvent(gomock.Any(), gomock.Any()).Return(true, nil).Times(2)
	mocks.store.EXPECT().SetBlockCursor(gomock.Any(), string(testChain), uint64(42)).Return(nil)

	mocks.subscriber.
		EXPECT().
		SubscribeEvents(gomock.Any(), uint64(42), gomock.Any()).
		DoAndReturn(func(ctx context.Context, fromBlock uint64, handler messaging.EventHandler) error {
			require.NoError(t, handler(createdEvent(1, 42)))
			require.NoError(t, handler(createdEvent(2, 43)))

			cancel()
			return nil
		})

	err := mocks.newEmitter(1, 1000).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEmitter_Run_GetBlockCursorError(t *testing.T) {
	mocks := setupTestEmitter(t)
	defer tearDownTestEmitter(mocks)

	mocks.store.
		EXPECT().
		GetBlockCursor(gomock.Any(), string(testChain)).
		Return(uint64(0), assert.AnError)

	err := mocks.newEmitter(1, 10).Run(context.Background())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get block cursor")
}

func TestEmitter_Run_SubscribeEventsError(t *testing.T) {
	mocks := setupTestEmitter(t)
	defer tearDownTestEmitter(mocks)

	mocks.clock.EXPECT().Now().Return(time.Now()).AnyTimes()
	mocks.store.
		EXPECT().
		GetBlockCursor(gomock.Any(), string(testChain)).
		Return(uint64(0), nil)
	mocks.subscriber.
		EXPECT().
		SubscribeEvents(gomock.Any(), uint64(1000), gomock.Any()).
		Return(assert.AnError)

	err := mocks.newEmitter(1000, 10).Run(context.Background())

	assert.ErrorIs(t, err, assert.AnError)
}

func TestEmitter_Run_PublishFailureHoldsCursor(t *testing.T) {
	mocks := setupTestEmitter(t)
	defer tearDownTestEmitter(mocks)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mocks.clock.EXPECT().Now().Return(time.Now()).AnyTimes()
	mocks.clock.EXPECT().Since(gomock.Any()).Return(10 * time.Second).AnyTimes()
	mocks.store.
		EXPECT().
		GetBlockCursor(gomock.Any(), string(testChain)).
		Return(uint64(0), nil)

	first := createdEvent(1, 1000)
	failing := createdEvent(2, 1001)
	third := createdEvent(3, 1002)
	fourth := createdEvent(4, 1010)

	mocks.publisher.EXPECT().PublishEvent(gomock.Any(), first).Return(nil)
	mocks.publisher.EXPECT().PublishEvent(gomock.Any(), failing).Return(assert.AnError)
	mocks.publisher.EXPECT().PublishEvent(gomock.Any(), third).Return(nil)
	mocks.publisher.EXPECT().PublishEvent(gomock.Any(), fourth).Return(nil)

	// the failed event is never journaled
	mocks.store.EXPECT().RecordLedgerEvent(gomock.Any(), first).Return(true, nil)
	mocks.store.EXPECT().RecordLedgerEvent(gomock.Any(), third).Return(true, nil)
	mocks.store.EXPECT().RecordLedgerEvent(gomock.Any(), fourth).Return(true, nil)

	// the cursor never moves past block 1000 so a restart replays 1001
	gomock.InOrder(
		mocks.store.EXPECT().SetBlockCursor(gomock.Any(), string(testChain), uint64(999)).Return(nil),
		mocks.store.EXPECT().SetBlockCursor(gomock.Any(), string(testChain), uint64(1000)).Return(nil),
	)

	mocks.subscriber.
		EXPECT().
		SubscribeEvents(gomock.Any(), uint64(1000), gomock.Any()).
		DoAndReturn(func(ctx context.Context, fromBlock uint64, handler messaging.EventHandler) error {
			assert.NoError(t, handler(first))

			err := handler(failing)
			assert.Error(t, err)
			assert.Contains(t, err.Error(), "failed to publish event")

			assert.NoError(t, handler(third))
			assert.NoError(t, handler(fourth))

			cancel()
			return nil
		})

	err := mocks.newEmitter(1000, 1).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEmitter_Run_JournalFailure(t *testing.T) {
	mocks := setupTestEmitter(t)
	defer tearDownTestEmitter(mocks)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mocks.clock.EXPECT().Now().Return(time.Now()).AnyTimes()
	mocks.clock.EXPECT().Since(gomock.Any()).Return(time.Duration(0)).AnyTimes()
	mocks.store.
		EXPECT().
		GetBlockCursor(gomock.Any(), string(testChain)).
		Return(uint64(0), nil)

	event := createdEvent(1, 1000)
	mocks.publisher.EXPECT().PublishEvent(gomock.Any(), event).Return(nil)
	mocks.store.EXPECT().RecordLedgerEvent(gomock.Any(), event).Return(false, assert.AnError)

	mocks.subscriber.
		EXPECT().
		SubscribeEvents(gomock.Any(), uint64(1000), gomock.Any()).
		DoAndReturn(func(ctx context.Context, fromBlock uint64, handler messaging.EventHandler) error {
			err := handler(event)
			assert.ErrorIs(t, err, assert.AnError)
			assert.Contains(t, err.Error(), "failed to journal event")

			cancel()
			return nil
		})

	err := mocks.newEmitter(1000, 1).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEmitter_Run_DropsMalformedEvent(t *testing.T) {
	mocks := setupTestEmitter(t)
	defer tearDownTestEmitter(mocks)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mocks.clock.EXPECT().Now().Return(time.Now()).AnyTimes()
	mocks.clock.EXPECT().Since(gomock.Any()).Return(time.Duration(0)).AnyTimes()
	mocks.store.
		EXPECT().
		GetBlockCursor(gomock.Any(), string(testChain)).
		Return(uint64(0), nil)

	malformed := createdEvent(1, 1000)
	malformed.ToAddress = nil

	mocks.subscriber.
		EXPECT().
		SubscribeEvents(gomock.Any(), uint64(1000), gomock.Any()).
		DoAndReturn(func(ctx context.Context, fromBlock uint64, handler messaging.EventHandler) error {
			assert.NoError(t, handler(malformed))

			cancel()
			return nil
		})

	// no publish and no journal expected
	mocks.store.EXPECT().SetBlockCursor(gomock.Any(), string(testChain), uint64(999)).Return(nil)

	err := mocks.newEmitter(1000, 1).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEmitter_Close(t *testing.T) {
	mocks := setupTestEmitter(t)
	defer tearDownTestEmitter(mocks)

	mocks.subscriber.
		EXPECT().
		Close()

	mocks.newEmitter(1, 10).Close()
}
