package schema

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/prax/dialect"
)

func TestCreate_MSSQL(t *testing.T) {
	s := parse(t, `
model User {
  id     Int     @id @auto
  email  String  @unique
  active Boolean @default(true)
  ref    Uuid    @default(uuid())
}

model Post {
  id       Int     @id @auto
  authorId Int
  author   User    @relation(fields: [authorId], references: [id], onDelete: Cascade)
  @@index([authorId])
}
`)
	stmts, err := Create(context.Background(), dialect.MSSQL, s)
	require.NoError(t, err)
	require.Len(t, stmts, 4)
	assert.Equal(t, `CREATE TABLE [dbo].[User] (
    [id] INT NOT NULL IDENTITY(1,1),
    [email] NVARCHAR(1000) NOT NULL,
    [active] BIT NOT NULL CONSTRAINT [User_active_df] DEFAULT 1,
    [ref] UNIQUEIDENTIFIER NOT NULL CONSTRAINT [User_ref_df] DEFAULT NEWID(),
    CONSTRAINT [User_pkey] PRIMARY KEY CLUSTERED ([id]),
    CONSTRAINT [User_email_key] UNIQUE NONCLUSTERED ([email])
);`, stmts[0])
	assert.Equal(t, `CREATE TABLE [dbo].[Post] (
    [id] INT NOT NULL IDENTITY(1,1),
    [authorId] INT NOT NULL,
    CONSTRAINT [Post_pkey] PRIMARY KEY CLUSTERED ([id])
);`, stmts[1])
	assert.Equal(t, `CREATE NONCLUSTERED INDEX [Post_authorId_idx] ON [dbo].[Post]([authorId]);`, stmts[2])
	assert.Equal(t, `ALTER TABLE [dbo].[Post] ADD CONSTRAINT [Post_authorId_fkey] FOREIGN KEY ([authorId]) REFERENCES [dbo].[User]([id]) ON DELETE CASCADE ON UPDATE CASCADE;`, stmts[3])
}

func TestCreate_MSSQLEnum(t *testing.T) {
	stmts, err := Create(context.Background(), dialect.MSSQL, parse(t, blog), WithForeignKeys(false))
	require.NoError(t, err)
	all := joinStmts(stmts)
	assert.Contains(t, all, `[role] NVARCHAR(1000) NOT NULL CONSTRAINT [users_role_df] DEFAULT N'ADMINISTRATOR'`)
	assert.Contains(t, all, `CONSTRAINT [users_role_check] CHECK (role IN (N'User', N'ADMINISTRATOR'))`)
	assert.Contains(t, all, `[updatedAt] DATETIME2 NOT NULL CONSTRAINT [users_updatedAt_df] DEFAULT CURRENT_TIMESTAMP`)
	assert.NotContains(t, all, "FOREIGN KEY")
}
