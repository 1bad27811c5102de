package responselog

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/MarcGrol/paymentbackend/lib/mystore"
	"github.com/MarcGrol/paymentbackend/lib/mytime"
	"github.com/MarcGrol/paymentbackend/lib/myuuid"
)

func TestRecorder(t *testing.T) {
	t.Run("Find basket on reference", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		ctx, sut, _ := setup(t, ctrl)

		// given
		_, err := sut.RecordRequest(ctx, "payu", "EDX-100-000001", "basket-123", "amount=50.00")
		assert.NoError(t, err)

		// when
		basketUID, err := sut.FindBasketByReference(ctx, "payu", "EDX-100-000001")

		// then
		assert.NoError(t, err)
		assert.Equal(t, "basket-123", basketUID)
	})

	t.Run("Find basket on unknown reference", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		ctx, sut, _ := setup(t, ctrl)

		_, err := sut.FindBasketByReference(ctx, "payu", "EDX-999-000001")
		assert.ErrorIs(t, err, ErrUnknownBasket)
	})

	t.Run("Find basket on duplicated reference", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		ctx, sut, _ := setup(t, ctrl)

		// given: two outbound records claiming the same reference
		_, err := sut.RecordRequest(ctx, "payu", "EDX-100-000001", "basket-123", "amount=50.00")
		assert.NoError(t, err)
		_, err = sut.RecordRequest(ctx, "payu", "EDX-100-000001", "basket-456", "amount=60.00")
		assert.NoError(t, err)

		// when
		_, err = sut.FindBasketByReference(ctx, "payu", "EDX-100-000001")

		// then
		assert.ErrorIs(t, err, ErrAmbiguousBasket)
	})

	t.Run("Notifications do not pollute basket lookup", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		ctx, sut, _ := setup(t, ctrl)

		_, err := sut.RecordRequest(ctx, "payu", "EDX-100-000001", "basket-123", "amount=50.00")
		assert.NoError(t, err)
		_, err = sut.RecordNotification(ctx, "payu", "txn-42", "EDX-100-000001", "basket-123", "state_pol=4")
		assert.NoError(t, err)
		_, err = sut.RecordNotification(ctx, "payu", "txn-42", "EDX-100-000001", "basket-123", "state_pol=4")
		assert.NoError(t, err)

		basketUID, err := sut.FindBasketByReference(ctx, "payu", "EDX-100-000001")
		assert.NoError(t, err)
		assert.Equal(t, "basket-123", basketUID)

		records, err := sut.ListByTransactionID(ctx, "payu", "txn-42")
		assert.NoError(t, err)
		assert.Len(t, records, 2)
	})

	t.Run("Count requests per basket", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		ctx, sut, _ := setup(t, ctrl)

		count, err := sut.CountRequests(ctx, "payu", "basket-123")
		assert.NoError(t, err)
		assert.Equal(t, 0, count)

		_, err = sut.RecordRequest(ctx, "payu", "EDX-100-000001", "basket-123", "amount=50.00")
		assert.NoError(t, err)
		_, err = sut.RecordRequest(ctx, "payu", "EDX-100-000002", "basket-123", "amount=50.00")
		assert.NoError(t, err)

		count, err = sut.CountRequests(ctx, "payu", "basket-123")
		assert.NoError(t, err)
		assert.Equal(t, 2, count)
	})
}

func setup(t *testing.T, ctrl *gomock.Controller) (context.Context, Recorder, mystore.Store[ProcessorResponseRecord]) {
	c := context.TODO()
	store, _, err := mystore.New[ProcessorResponseRecord](c)
	assert.NoError(t, err)

	nower := mytime.NewMockNower(ctrl)
	nower.EXPECT().Now().Return(mytime.ExampleTime).AnyTimes()

	uuider := myuuid.NewMockUUIDer(ctrl)
	uid := 0
	uuider.EXPECT().Create().DoAndReturn(func() string {
		uid++
		return fmt.Sprintf("uid-%d", uid)
	}).AnyTimes()

	return c, NewRecorder(store, nower, uuider), store
}
